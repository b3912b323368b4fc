package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSheetName(t *testing.T) {
	require.Equal(t, "Grades", SheetName("  "))
	require.Equal(t, "Physics - G1-2", SheetName("Physics - G1/2"))
	require.Len(t, []rune(SheetName("a very long group name that exceeds the limit")), 31)
}

func TestWriteGradeSheet(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGradeSheet(&buf, "G1", []Row{
		{StudentName: "Ana", StudentEmail: "ana@uni.test", Value: "5", IssuerName: "Dr Bo", GivenAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{StudentName: "Cy", StudentEmail: "cy@uni.test", Value: "3"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("G1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Student", "Email", "Grade", "Issued by", "Issued at"}, rows[0])
	require.Equal(t, []string{"Ana", "ana@uni.test", "5", "Dr Bo", "2024-01-02T03:04:05Z"}, rows[1])
	require.Equal(t, "Cy", rows[2][0])
}
