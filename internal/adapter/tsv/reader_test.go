package tsv

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTable = "Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tYi3_cm\tDeltaZ_cm\n" +
	"15.10\t30.1\t3.6\t3.5\t3.4\t0.5\n" +
	"15.30\t30.0\t3.8\t3.7\t3.6\t0.5\n" +
	"15.50\t29.9\t4.0\t3.9\t4.1\t0.5\n"

func TestParse(t *testing.T) {
	t.Run("lab table", func(t *testing.T) {
		rows, err := Parse(strings.NewReader(baseTable))
		require.NoError(t, err)
		require.Len(t, rows, 3)

		assert.Equal(t, domain.RawStation{
			Line: 3, PositionM: 15.50, FlowM3H: 29.9,
			Probe1CM: 4.0, Probe2CM: 3.9, Probe3CM: 4.1, DeltaZCM: 0.5,
		}, rows[2])
		for i, r := range rows {
			assert.Equal(t, i+1, r.Line)
		}
	})

	t.Run("columns in any order with extras and BOM", func(t *testing.T) {
		in := "\ufeffYi3_cm\tNote\tDeltaZ_cm\tCota_m\tQ_m3h\tYi1_cm\tYi2_cm\n" +
			"4.1\tgate open\t0.5\t15.5\t29.9\t4.0\t3.9\n"
		rows, err := Parse(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 4.1, rows[0].Probe3CM)
		assert.Equal(t, 15.5, rows[0].PositionM)
	})

	t.Run("blank rows are skipped", func(t *testing.T) {
		in := baseTable + "\t\t\t\t\t\n\n" + "15.70\t30.0\t6.5\t7.5\t7.0\t0.5\n"
		rows, err := Parse(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, 6, rows[3].Line, "blank rows still count toward the row number")
	})

	t.Run("errors after blank rows name the source row", func(t *testing.T) {
		in := baseTable + "\n\t\t\t\t\t\n" + "15.70\t30.0\tabc\t7.5\t7.0\t0.5\n"
		_, err := Parse(strings.NewReader(in))
		require.ErrorIs(t, err, domain.ErrInvalidRecord)
		assert.Contains(t, err.Error(), "row 6: column Yi1_cm")
	})

	t.Run("header only", func(t *testing.T) {
		rows, err := Parse(strings.NewReader("Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tYi3_cm\tDeltaZ_cm\n"))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestParse_MissingColumn(t *testing.T) {
	in := "Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tDeltaZ_cm\n" +
		"15.10\t30.1\tnot-a-number\t3.5\t0.5\n"

	rows, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Nil(t, rows)
	assert.Contains(t, err.Error(), "Yi3_cm")
	assert.NotErrorIs(t, err, domain.ErrInvalidRecord, "columns are checked before rows")
}

func TestParse_ReportsEveryMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Cota_m\tYi1_cm\n15\t3\n"))
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Contains(t, err.Error(), "Q_m3h, Yi2_cm, Yi3_cm, DeltaZ_cm")
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestParse_InvalidCell(t *testing.T) {
	tests := []struct {
		name string
		row  string
		msg  string
	}{
		{"text in probe", "15.1\t30\t3.6\tabc\t3.4\t0.5", `row 1: column Yi2_cm: "abc"`},
		{"empty flow", "15.1\t\t3.6\t3.5\t3.4\t0.5", "row 1: column Q_m3h"},
		{"short row", "15.1\t30\t3.6", "row 1: column Yi2_cm is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tYi3_cm\tDeltaZ_cm\n" + tt.row + "\n"
			_, err := Parse(strings.NewReader(in))
			require.ErrorIs(t, err, domain.ErrInvalidRecord)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReader_Extract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.txt")
	require.NoError(t, os.WriteFile(path, []byte(baseTable), 0o600))

	r := NewReader(path, slog.Default())
	rows, err := r.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReader_ExtractMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope.txt"), slog.Default())
	_, err := r.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open station table")
}

func TestReader_ExtractMissingColumnNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.txt")
	require.NoError(t, os.WriteFile(path, []byte("Cota_m\tQ_m3h\n15\t30\n"), 0o600))

	_, err := NewReader(path, slog.Default()).Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Contains(t, err.Error(), path)
}
