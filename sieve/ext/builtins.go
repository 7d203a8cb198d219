package ext

// Builtins is the registry shipped with the engine: RFC 5228's base
// extensions plus the common ones this implementation supports. The
// ManageSieve server wires this into the validator and its CAPABILITY
// response; a deployment that wants a narrower surface can build its
// own Registry instead.
var Builtins = NewRegistry(
	&Extension{Name: "comparator-i;octet", Implicit: true},
	&Extension{Name: "comparator-i;ascii-casemap", Implicit: true},
	&Extension{Name: "encoded-character", Implicit: true},

	&Extension{Name: "fileinto", Commands: []string{"fileinto"}},
	&Extension{Name: "reject", Commands: []string{"reject"}},
	&Extension{Name: "envelope", Tests: []string{"envelope"}},
	&Extension{Name: "body", Tests: []string{"body"}},
	&Extension{Name: "copy"},
	&Extension{Name: "imap4flags", Commands: []string{"setflag", "addflag", "removeflag", "hasflag"}, Tests: []string{"hasflag"}},
	&Extension{Name: "variables", Commands: []string{"set"}, Tests: []string{"string"}},
	&Extension{Name: "vacation", Commands: []string{"vacation"}},
	&Extension{Name: "subaddress"},
	&Extension{Name: "relational", Tests: []string{"header", "address", "envelope"}},
	&Extension{Name: "regex"},
	&Extension{Name: "include", Commands: []string{"include", "global"}},
	&Extension{Name: "enotify", Commands: []string{"notify"}},
	&Extension{Name: "mailbox", Commands: []string{"mailboxexists"}},
	&Extension{Name: "date", Tests: []string{"date", "currentdate"}},
	&Extension{Name: "index"},
)
