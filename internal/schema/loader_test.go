package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

const hrDoc = `
name: hr
version: 2
table:
  Job:
    column:
      id: STRING
      title: STRING
      minSalary: NUMBER
    constraint:
      primaryKey: [id]
    index:
      idx_minSalary:
        column: [minSalary]
  Employee:
    column:
      id: STRING
      jobId: STRING
      salary: NUMBER
      hireDate: DATETIME
    constraint:
      primaryKey: [id]
      nullable: [hireDate]
      unique:
        uq_salary:
          column: [salary]
      foreignKey:
        fk_jobId:
          localColumn: jobId
          reference: Job
          remoteColumn: id
    index:
      idx_jobId:
        column: [jobId]
`

func TestParse_FullDocument(t *testing.T) {
	db, err := Parse([]byte(hrDoc))
	require.NoError(t, err)

	assert.Equal(t, "hr", db.Name())
	assert.Equal(t, 2, db.Version())

	// Table and column declaration order is preserved from the document.
	tables := db.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "Job", tables[0].Name())
	assert.Equal(t, "Employee", tables[1].Name())

	emp := tables[1]
	assert.Equal(t, []string{"id", "jobId", "salary", "hireDate"}, columnNames(emp))

	hireDate, err := emp.Column("hireDate")
	require.NoError(t, err)
	assert.True(t, hireDate.Nullable())
	assert.Equal(t, types.TypeDateTime, hireDate.Type())

	require.NotNil(t, emp.PrimaryKey())
	idx, err := emp.Index("uq_salary")
	require.NoError(t, err)
	assert.True(t, idx.Unique)

	fks := emp.ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "jobId", fks[0].Local.Name())
	assert.Equal(t, "Job", fks[0].RemoteTable)
	assert.Equal(t, "id", fks[0].RemoteColumn)
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		code errors.Code
	}{
		{"missing name", "version: 1\ntable:\n  T:\n    column:\n      a: STRING\n", errors.CodeSyntax},
		{"bad version", "name: x\nversion: 0\ntable:\n  T:\n    column:\n      a: STRING\n", errors.CodeSyntax},
		{"missing tables", "name: x\nversion: 1\n", errors.CodeSyntax},
		{"unknown type", "name: x\nversion: 1\ntable:\n  T:\n    column:\n      a: VARCHAR\n", errors.CodeType},
		{"not yaml", ":\tnope", errors.CodeSyntax},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.CodeOf(err))
		})
	}
}
