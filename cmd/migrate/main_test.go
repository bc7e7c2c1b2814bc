package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   []int
	downSteps []int
	state     postgres.MigrationState
	err       error
	statusErr error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	return f.err
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.downSteps = append(f.downSteps, steps)
	return f.err
}

func (f *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return f.state, f.statusErr
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults with env dsn",
			env:  map[string]string{"SHOP_POSTGRES_DSN": " postgres://env "},
			want: options{direction: "up", dsn: "postgres://env", timeout: defaultTimeout},
		},
		{
			name: "flag dsn wins",
			args: []string{"-direction=DOWN", "-steps=2", "-dsn=postgres://flag", "-timeout=5s"},
			env:  map[string]string{"SHOP_POSTGRES_DSN": "postgres://env"},
			want: options{direction: "down", steps: 2, dsn: "postgres://flag", timeout: 5 * time.Second},
		},
		{name: "missing dsn", args: []string{"-direction=status"}, wantErr: "SHOP_POSTGRES_DSN"},
		{name: "bad direction", args: []string{"-direction=sideways", "-dsn=x"}, wantErr: "unsupported direction"},
		{name: "negative steps", args: []string{"-steps=-1", "-dsn=x"}, wantErr: "steps must be >= 0"},
		{name: "unknown flag", args: []string{"-force"}, wantErr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			getenv := func(k string) string { return tt.env[k] }

			got, err := parseOptions(tt.args, getenv)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	state := postgres.MigrationState{Version: 1, Applied: 1, Pending: []string{"0002_outbox"}}

	t.Run("up prints status", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{state: state}
		var out bytes.Buffer

		require.NoError(t, run(context.Background(), options{direction: "up", steps: 1}, m, &out))
		require.Equal(t, []int{1}, m.upSteps)
		require.Equal(t, "migrate up ok: version=1 applied=1 pending=1\n  pending 0002_outbox\n", out.String())
	})

	t.Run("down", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{}
		var out bytes.Buffer

		require.NoError(t, run(context.Background(), options{direction: "down"}, m, &out))
		require.Equal(t, []int{0}, m.downSteps)
		require.True(t, strings.HasPrefix(out.String(), "migrate down ok: version=0 applied=0 pending=0"))
	})

	t.Run("status only", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{state: state}
		var out bytes.Buffer

		require.NoError(t, run(context.Background(), options{direction: "status"}, m, &out))
		require.Empty(t, m.upSteps)
		require.Empty(t, m.downSteps)
		require.Contains(t, out.String(), "migration status: version=1")
	})

	t.Run("migration error", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{err: errors.New("lock timeout")}

		err := run(context.Background(), options{direction: "up"}, m, &bytes.Buffer{})
		require.ErrorContains(t, err, "migrate up failed: lock timeout")
	})

	t.Run("status error", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{statusErr: errors.New("no table")}

		err := run(context.Background(), options{direction: "status"}, m, &bytes.Buffer{})
		require.ErrorContains(t, err, "migration status failed")
	})
}

func TestRun_Postgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SHOP_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("SHOP_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	defer store.Close()

	var out bytes.Buffer
	require.NoError(t, run(ctx, options{direction: "up"}, store, &out))
	require.Contains(t, out.String(), "pending=0")

	out.Reset()
	require.NoError(t, run(ctx, options{direction: "status"}, store, &out))
	require.Contains(t, out.String(), "version=2")
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.NotZero(t, exitErr.ExitCode())
	require.Contains(t, stderr.String(), "forced failure 42")
}
