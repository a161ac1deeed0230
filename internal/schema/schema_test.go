package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

func buildHRSchema(t *testing.T) *Database {
	t.Helper()
	b := NewBuilder("hr", 1)
	b.Table("Job").
		Column("id", types.TypeString).
		Column("title", types.TypeString).
		Column("minSalary", types.TypeNumber).
		PrimaryKey("id").
		Index("idx_minSalary", "minSalary")
	b.Table("Employee").
		Column("id", types.TypeString).
		Column("jobId", types.TypeString).
		Column("salary", types.TypeNumber).
		Column("hireDate", types.TypeDateTime).
		PrimaryKey("id").
		Nullable("hireDate").
		Unique("uq_salary", "salary").
		Index("idx_jobId", "jobId").
		ForeignKey("fk_jobId", "jobId", "Job", "id")
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

func TestBuilder_TableAndColumnAccess(t *testing.T) {
	db := buildHRSchema(t)
	assert.Equal(t, "hr", db.Name())
	assert.Equal(t, 1, db.Version())
	assert.Len(t, db.Tables(), 2)

	emp, err := db.Table("Employee")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "jobId", "salary", "hireDate"}, columnNames(emp))

	salary, err := emp.Column("salary")
	require.NoError(t, err)
	assert.Equal(t, types.TypeNumber, salary.Type())
	assert.Equal(t, emp, salary.Table())
	assert.Equal(t, 2, salary.Ordinal())

	_, err = db.Table("Missing")
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
	_, err = emp.Column("missing")
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

func TestBuilder_IndexPreference(t *testing.T) {
	db := buildHRSchema(t)
	emp, _ := db.Table("Employee")

	pk := emp.PrimaryKey()
	require.NotNil(t, pk)
	assert.True(t, pk.PrimaryKey)
	assert.True(t, pk.Unique)
	assert.Equal(t, "Employee.#pk", pk.FullName())

	salary, _ := emp.Column("salary")
	on := emp.IndexesOn(salary)
	require.Len(t, on, 1)
	assert.Equal(t, "uq_salary", on[0].Name)

	id, _ := emp.Column("id")
	on = emp.IndexesOn(id)
	require.Len(t, on, 1)
	assert.True(t, on[0].PrimaryKey)
}

func TestBuilder_NullablePrimaryKeyRejected(t *testing.T) {
	b := NewBuilder("bad", 1)
	b.Table("T").
		Column("id", types.TypeString).
		Nullable("id").
		PrimaryKey("id")
	_, err := b.Build()
	assert.Equal(t, errors.CodeConstraint, errors.CodeOf(err))
}

func TestBuilder_ForeignKeyValidation(t *testing.T) {
	b := NewBuilder("bad", 1)
	b.Table("T").
		Column("ref", types.TypeString).
		ForeignKey("fk", "ref", "Missing", "id")
	_, err := b.Build()
	assert.Equal(t, errors.CodeSyntax, errors.CodeOf(err))

	// Type mismatch between local and remote columns.
	b = NewBuilder("bad2", 1)
	b.Table("R").Column("id", types.TypeInteger).PrimaryKey("id")
	b.Table("T").
		Column("ref", types.TypeString).
		ForeignKey("fk", "ref", "R", "id")
	_, err = b.Build()
	assert.Equal(t, errors.CodeType, errors.CodeOf(err))
}

func TestBuilder_CyclicForeignKeys(t *testing.T) {
	// Foreign keys may form cycles; tables are resolved by name.
	b := NewBuilder("cyc", 1)
	b.Table("A").
		Column("id", types.TypeString).
		Column("bRef", types.TypeString).
		PrimaryKey("id").
		ForeignKey("fk_b", "bRef", "B", "id")
	b.Table("B").
		Column("id", types.TypeString).
		Column("aRef", types.TypeString).
		PrimaryKey("id").
		ForeignKey("fk_a", "aRef", "A", "id")
	_, err := b.Build()
	assert.NoError(t, err)
}

func TestCheckRow(t *testing.T) {
	db := buildHRSchema(t)
	emp, _ := db.Table("Employee")

	ok := map[string]interface{}{"id": "e1", "jobId": "j1", "salary": float64(100), "hireDate": nil}
	assert.NoError(t, emp.CheckRow(ok))

	badType := map[string]interface{}{"id": "e1", "jobId": "j1", "salary": "high"}
	assert.Equal(t, errors.CodeType, errors.CodeOf(emp.CheckRow(badType)))

	nullViolation := map[string]interface{}{"id": nil, "jobId": "j1", "salary": float64(1)}
	assert.Equal(t, errors.CodeConstraint, errors.CodeOf(emp.CheckRow(nullViolation)))

	missing := map[string]interface{}{"id": "e1", "salary": float64(1)}
	assert.Equal(t, errors.CodeConstraint, errors.CodeOf(emp.CheckRow(missing)))

	unknown := map[string]interface{}{"id": "e1", "jobId": "j1", "salary": float64(1), "bogus": 1}
	assert.Equal(t, errors.CodeSyntax, errors.CodeOf(emp.CheckRow(unknown)))
}

func TestColumn_Alias(t *testing.T) {
	db := buildHRSchema(t)
	emp, _ := db.Table("Employee")
	salary, _ := emp.Column("salary")

	aliased := salary.As("pay")
	assert.Equal(t, "pay", aliased.Alias())
	assert.Equal(t, "", salary.Alias())
	assert.Equal(t, salary.Name(), aliased.Name())
}

func columnNames(t *Table) []string {
	names := make([]string, len(t.Columns()))
	for i, c := range t.Columns() {
		names[i] = c.Name()
	}
	return names
}
