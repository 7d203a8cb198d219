package ast

import (
	"fmt"

	"github.com/sievegate/sievegate/sieve/lexer"
)

// Options bounds the parser's recursion so a pathological script
// cannot blow the Go call stack (spec component M, "max_nesting_depth").
type Options struct {
	MaxBlockNesting int // 0 means a built-in default (32)
	MaxTestNesting  int // 0 means a built-in default (32)
	Filename        string
}

// Error is a syntax error with source position attached. The parser
// stops at the first one — go-sieve-style fail-fast — leaving
// accumulate-many-errors behavior to the validator (component C).
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

type stream struct {
	toks []lexer.Token
	pos  int
}

func (s *stream) peek() lexer.Token {
	if s.pos >= len(s.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return s.toks[s.pos]
}

func (s *stream) advance() lexer.Token {
	t := s.peek()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return t
}

// Parse consumes a full token stream (as produced by lexer.Lex) into a
// Script. It implements: script = *command.
func Parse(toks []lexer.Token, opts *Options) (*Script, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxBlock := opts.MaxBlockNesting
	if maxBlock == 0 {
		maxBlock = 32
	}
	maxTest := opts.MaxTestNesting
	if maxTest == 0 {
		maxTest = 32
	}
	p := &parser{s: &stream{toks: toks}, maxBlockDepth: maxBlock, maxTestDepth: maxTest}

	var cmds []*Command
	for p.s.peek().Kind != lexer.EOF {
		cmd, err := p.parseCommand(0)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return &Script{Commands: cmds, Filename: opts.Filename}, nil
}

type parser struct {
	s             *stream
	maxBlockDepth int
	maxTestDepth  int
}

// parseCommand implements: command = identifier arguments (block / ";")
func (p *parser) parseCommand(blockDepth int) (*Command, error) {
	tok := p.s.advance()
	if tok.Kind != lexer.Identifier {
		return nil, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("expected command name, got %s", tok.Kind)}
	}
	cmd := &Command{Name: tok.Text, Pos: tok.Pos}

	args, err := p.parseArguments(0)
	if err != nil {
		return nil, err
	}
	cmd.Args = args

	switch p.s.peek().Kind {
	case lexer.LBrace:
		block, err := p.parseBlock(blockDepth)
		if err != nil {
			return nil, err
		}
		cmd.Block = block
	case lexer.Semicolon:
		p.s.advance()
	default:
		t := p.s.peek()
		return nil, &Error{Pos: t.Pos, Msg: fmt.Sprintf("expected ';' or '{' after command %q, got %s", cmd.Name, t.Kind)}
	}

	if cmd.Name == "if" {
		if err := p.parseElsifElse(cmd, blockDepth); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// parseElsifElse folds any "elsif"/"else" clauses following an "if"
// into the same Command, since they are one control structure.
func (p *parser) parseElsifElse(ifCmd *Command, blockDepth int) error {
	for p.s.peek().Kind == lexer.Identifier && p.s.peek().Text == "elsif" {
		tok := p.s.advance()
		clause := &Command{Name: "elsif", Pos: tok.Pos}
		args, err := p.parseArguments(0)
		if err != nil {
			return err
		}
		clause.Args = args
		if p.s.peek().Kind != lexer.LBrace {
			t := p.s.peek()
			return &Error{Pos: t.Pos, Msg: fmt.Sprintf("expected '{' after 'elsif', got %s", t.Kind)}
		}
		block, err := p.parseBlock(blockDepth)
		if err != nil {
			return err
		}
		clause.Block = block
		ifCmd.Elsif = append(ifCmd.Elsif, clause)
	}
	if p.s.peek().Kind == lexer.Identifier && p.s.peek().Text == "else" {
		p.s.advance()
		if p.s.peek().Kind != lexer.LBrace {
			t := p.s.peek()
			return &Error{Pos: t.Pos, Msg: fmt.Sprintf("expected '{' after 'else', got %s", t.Kind)}
		}
		block, err := p.parseBlock(blockDepth)
		if err != nil {
			return err
		}
		ifCmd.Else = block
	}
	return nil
}

// parseTest implements: test = identifier *test-argument (no block, no
// terminator of its own — it ends wherever the enclosing argument list
// or test-list ends).
func (p *parser) parseTest(testDepth int) (*Command, error) {
	if testDepth > p.maxTestDepth {
		t := p.s.peek()
		return nil, &Error{Pos: t.Pos, Msg: "test nesting exceeds maximum depth"}
	}
	tok := p.s.advance()
	if tok.Kind != lexer.Identifier {
		return nil, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("expected test name, got %s", tok.Kind)}
	}
	cmd := &Command{Name: tok.Text, Pos: tok.Pos}
	args, err := p.parseArguments(testDepth)
	if err != nil {
		return nil, err
	}
	cmd.Args = args
	return cmd, nil
}

// parseArguments consumes a sequence of argument / test / test-list
// productions until a token that cannot start one is seen.
func (p *parser) parseArguments(testDepth int) ([]*Argument, error) {
	var args []*Argument
	for {
		tok := p.s.peek()
		switch tok.Kind {
		case lexer.Number:
			p.s.advance()
			args = append(args, &Argument{Kind: ArgNumber, Number: tok.Value, Pos: tok.Pos})
		case lexer.String:
			p.s.advance()
			args = append(args, &Argument{Kind: ArgString, Str: tok.Text, Pos: tok.Pos})
		case lexer.Tag:
			p.s.advance()
			args = append(args, &Argument{Kind: ArgTag, Tag: tok.Text, Pos: tok.Pos})
		case lexer.LBracket:
			arg, err := p.parseStringList()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		case lexer.LParen:
			arg, err := p.parseTestList(testDepth + 1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		case lexer.Identifier:
			test, err := p.parseTest(testDepth + 1)
			if err != nil {
				return nil, err
			}
			args = append(args, &Argument{Kind: ArgTest, Test: test, Pos: test.Pos})
		default:
			return args, nil
		}
	}
}

func (p *parser) parseStringList() (*Argument, error) {
	start := p.s.advance() // consume '['
	var list []string
	for {
		tok := p.s.peek()
		if tok.Kind == lexer.RBracket {
			p.s.advance()
			break
		}
		if tok.Kind != lexer.String {
			return nil, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("expected string in string-list, got %s", tok.Kind)}
		}
		p.s.advance()
		list = append(list, tok.Text)
		if p.s.peek().Kind == lexer.Comma {
			p.s.advance()
			continue
		}
	}
	return &Argument{Kind: ArgStringList, StrList: list, Pos: start.Pos}, nil
}

func (p *parser) parseTestList(testDepth int) (*Argument, error) {
	if testDepth > p.maxTestDepth {
		t := p.s.peek()
		return nil, &Error{Pos: t.Pos, Msg: "test nesting exceeds maximum depth"}
	}
	start := p.s.advance() // consume '('
	var tests []*Command
	for {
		if p.s.peek().Kind == lexer.RParen {
			p.s.advance()
			break
		}
		test, err := p.parseTest(testDepth)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
		if p.s.peek().Kind == lexer.Comma {
			p.s.advance()
			continue
		}
	}
	if len(tests) == 0 {
		return nil, &Error{Pos: start.Pos, Msg: "test-list must contain at least one test"}
	}
	return &Argument{Kind: ArgTestList, Tests: tests, Pos: start.Pos}, nil
}

func (p *parser) parseBlock(depth int) (*Block, error) {
	if depth+1 > p.maxBlockDepth {
		t := p.s.peek()
		return nil, &Error{Pos: t.Pos, Msg: "block nesting exceeds maximum depth"}
	}
	start := p.s.advance() // consume '{'
	block := &Block{Pos: start.Pos}
	for {
		if p.s.peek().Kind == lexer.RBrace {
			p.s.advance()
			return block, nil
		}
		if p.s.peek().Kind == lexer.EOF {
			return nil, &Error{Pos: start.Pos, Msg: "unterminated block, missing '}'"}
		}
		cmd, err := p.parseCommand(depth + 1)
		if err != nil {
			return nil, err
		}
		block.Commands = append(block.Commands, cmd)
	}
}
