package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostscan/hostscan/pkg/storage"
)

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		in      string
		want    TableRef
		wantErr bool
	}{
		{in: "my-project:scans.hosts", want: TableRef{"my-project", "scans", "hosts"}},
		{in: "p:d_1.t_2", want: TableRef{"p", "d_1", "t_2"}},
		{in: "", wantErr: true},
		{in: "scans.hosts", wantErr: true},
		{in: "p:hosts", wantErr: true},
		{in: ":d.t", wantErr: true},
		{in: "p:.t", wantErr: true},
		{in: "p:d.", wantErr: true},
		{in: "p:d.t-x", wantErr: true},
		{in: "p:d.t.u", wantErr: true},
		{in: "p/x:d.t", wantErr: true},
		{in: "1p:d.t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTableRef(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTableRef)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, got.String())
		})
	}
}

func TestNew(t *testing.T) {
	ref := TableRef{"p", "d", "t"}
	backend, err := storage.NewLocalBackend(context.Background(), &storage.Config{Root: t.TempDir()})
	require.NoError(t, err)

	s, err := New(ref, Options{Driver: DriverSQLite, WarehouseDir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &SQLiteSink{}, s)

	s, err = New(ref, Options{Driver: "JSONL", Runs: backend.Runs(), RunID: "r1"})
	require.NoError(t, err)
	require.IsType(t, &StagingSink{}, s)

	_, err = New(ref, Options{Driver: DriverSQLite})
	require.Error(t, err)

	_, err = New(ref, Options{Driver: DriverJSONL})
	require.Error(t, err)

	_, err = New(ref, Options{Driver: "bigquery"})
	require.Error(t, err)

	_, err = New(TableRef{"p", "d", "bad-name"}, Options{Driver: DriverSQLite, WarehouseDir: t.TempDir()})
	require.ErrorIs(t, err, ErrInvalidTableRef)
}
