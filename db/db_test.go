package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sievegate/sievegate/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newTestDatabase connects to a local sievegate_test database and runs
// migrations against it. Run manually with a Postgres instance up:
// `createdb sievegate_test` beforehand.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	// t.Skip("This test requires a database connection. Run manually with -run=TestScript...")

	ctx := context.Background()
	connString := "postgres://postgres@localhost:5432/sievegate_test?sslmode=disable"

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	d := &Database{Pool: pool}
	require.NoError(t, d.migrate(connString))
	t.Cleanup(func() {
		d.Pool.Exec(ctx, `TRUNCATE credentials, sieve_scripts, vacation_responses`)
	})

	return d
}

func insertCredential(t *testing.T, d *Database, accountID int64, address, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = d.Pool.Exec(context.Background(),
		`INSERT INTO credentials (account_id, address, password) VALUES ($1, $2, $3)`,
		accountID, address, string(hash))
	require.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	insertCredential(t, d, 1, "user@example.com", "s3cret")

	accountID, err := d.Authenticate(ctx, "user@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), accountID)

	_, err = d.Authenticate(ctx, "user@example.com", "wrong")
	assert.Error(t, err)

	_, err = d.GetAccountIDByAddress(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, consts.ErrUserNotFound)
}

func TestSieveScriptLifecycle(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	script, err := d.CreateScript(ctx, 1, "myscript", "stop;\n")
	require.NoError(t, err)
	assert.False(t, script.Active)

	fetched, err := d.GetScriptByName(ctx, "myscript", 1)
	require.NoError(t, err)
	assert.Equal(t, script.ID, fetched.ID)

	require.NoError(t, d.SetScriptActive(ctx, script.ID, 1, true))
	active, err := d.GetActiveScript(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, script.ID, active.ID)

	second, err := d.CreateScript(ctx, 1, "other", "keep;\n")
	require.NoError(t, err)
	require.NoError(t, d.SetScriptActive(ctx, second.ID, 1, true))

	active, err = d.GetActiveScript(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID, "activating a new script must deactivate the previous one")

	require.NoError(t, d.DeleteScript(ctx, script.ID, 1))
	_, err = d.GetScript(ctx, script.ID, 1)
	assert.Error(t, err)
}

func TestVacationResponseCooldown(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	allowed, err := d.IsVacationResponseAllowed(ctx, 1, "sender@example.com", "", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, d.RecordVacationResponseSent(ctx, 1, "sender@example.com", ""))

	allowed, err = d.IsVacationResponseAllowed(ctx, 1, "sender@example.com", "", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, allowed, "a response already sent within the window must not be sent again")

	// A distinct handle tracks its own cooldown independently.
	allowed, err = d.IsVacationResponseAllowed(ctx, 1, "sender@example.com", "other-rule", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCleanupOldVacationResponses(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.RecordVacationResponse(ctx, 1, "old@example.com"))
	removed, err := d.CleanupOldVacationResponses(ctx, -time.Hour) // cutoff in the future removes everything
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
