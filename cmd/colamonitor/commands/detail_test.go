package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ColaMonitor/internal/domain"
)

func TestDetailRowsFallBackToNA(t *testing.T) {
	t.Parallel()

	rows := detailRows(domain.LabelDetail{
		TTBID:     "25001001000001",
		BrandName: domain.Text("OLD OAK"),
		Status:    domain.Text("APPROVED"),
	})

	require.Len(t, rows, 14)
	require.Equal(t, "25001001000001", rows[0][1])
	require.Equal(t, "N/A", rows[1][1])
	require.Equal(t, "OLD OAK", rows[5][1])
	require.Equal(t, "APPROVED", rows[10][1])
}
