package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS(t *testing.T) {
	t.Parallel()

	file := func(body string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(body)} }

	cases := []struct {
		name    string
		fsys    fstest.MapFS
		want    []string
		wantErr string
	}{
		{
			name: "sorted by version",
			fsys: fstest.MapFS{
				"sql/migrations/0002_more.up.sql":   file("CREATE TABLE b (id INT);"),
				"sql/migrations/0002_more.down.sql": file("DROP TABLE b;"),
				"sql/migrations/0001_init.up.sql":   file("CREATE TABLE a (id INT);"),
				"sql/migrations/0001_init.down.sql": file("DROP TABLE a;"),
			},
			want: []string{"0001_init", "0002_more"},
		},
		{
			name:    "missing down",
			fsys:    fstest.MapFS{"sql/migrations/0001_init.up.sql": file("CREATE TABLE a (id INT);")},
			wantErr: "both up and down",
		},
		{
			name:    "bad file name",
			fsys:    fstest.MapFS{"sql/migrations/not_a_migration.sql": file("SELECT 1;")},
			wantErr: "invalid migration file name",
		},
		{
			name: "blank body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   file("   \n"),
				"sql/migrations/0001_init.down.sql": file("DROP TABLE a;"),
			},
			wantErr: "is empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    file("CREATE TABLE a (id INT);"),
				"sql/migrations/0001_other.down.sql": file("DROP TABLE a;"),
			},
			wantErr: "name mismatch",
		},
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			migrations, err := loadMigrationsFromFS(tc.fsys)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, m := range migrations {
				got = append(got, m.label())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "0001_init", migrations[0].label())
	assert.Equal(t, "0002_outbox", migrations[1].label())
}

func TestPlanMigrations(t *testing.T) {
	t.Parallel()

	migrations := []migration{
		{Version: 1, Name: "init"},
		{Version: 2, Name: "outbox"},
		{Version: 3, Name: "indexes"},
	}
	labels := func(plan []migration) []string {
		out := make([]string, 0, len(plan))
		for _, m := range plan {
			out = append(out, m.label())
		}
		return out
	}

	tests := []struct {
		name      string
		direction migrationDirection
		applied   []int64
		steps     int
		want      []string
		wantErr   bool
	}{
		{name: "up all", direction: migrationUp, want: []string{"0001_init", "0002_outbox", "0003_indexes"}},
		{name: "up one", direction: migrationUp, applied: []int64{1}, steps: 1, want: []string{"0002_outbox"}},
		{name: "up nothing left", direction: migrationUp, applied: []int64{1, 2, 3}, want: []string{}},
		{name: "down latest first", direction: migrationDown, applied: []int64{1, 2, 3}, steps: 2, want: []string{"0003_indexes", "0002_outbox"}},
		{name: "down more than applied", direction: migrationDown, applied: []int64{1}, steps: 5, want: []string{"0001_init"}},
		{name: "down unknown version", direction: migrationDown, applied: []int64{1, 9}, steps: 1, wantErr: true},
		{name: "bad direction", direction: migrationDirection("sideways"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, err := planMigrations(tt.direction, migrations, tt.applied, tt.steps)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := labels(plan)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("plan = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildMigrationState(t *testing.T) {
	t.Parallel()

	state := buildMigrationState([]migration{
		{Version: 1, Name: "init"},
		{Version: 2, Name: "outbox"},
	}, []int64{1})

	assert.Equal(t, MigrationState{Version: 1, Applied: 1, Pending: []string{"0002_outbox"}}, state)
}
