package schema

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

// The declarative schema document:
//
//	name: hr
//	version: 1
//	table:
//	  Employee:
//	    column:
//	      id: STRING
//	      jobId: STRING
//	      salary: NUMBER
//	    constraint:
//	      primaryKey: [id]
//	      nullable: [salary]
//	      unique:
//	        uq_salary:
//	          column: [salary]
//	      foreignKey:
//	        fk_JobId:
//	          localColumn: jobId
//	          reference: Job
//	          remoteColumn: id
//	    index:
//	      idx_salary:
//	        column: [salary]
//
// Column and table declaration order is preserved from the document.

type schemaDoc struct {
	Name    string    `yaml:"name"`
	Version int       `yaml:"version"`
	Table   yaml.Node `yaml:"table"`
}

type tableDoc struct {
	Column     yaml.Node      `yaml:"column"`
	Constraint *constraintDoc `yaml:"constraint"`
	Index      yaml.Node      `yaml:"index"`
}

type constraintDoc struct {
	PrimaryKey []string  `yaml:"primaryKey"`
	Nullable   []string  `yaml:"nullable"`
	Unique     yaml.Node `yaml:"unique"`
	ForeignKey yaml.Node `yaml:"foreignKey"`
}

type indexDoc struct {
	Column []string `yaml:"column"`
}

type foreignKeyDoc struct {
	LocalColumn  string `yaml:"localColumn"`
	Reference    string `yaml:"reference"`
	RemoteColumn string `yaml:"remoteColumn"`
}

// Load reads and parses a schema document from disk.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeNotFound, err, "failed to read schema document %q", path)
	}
	return Parse(data)
}

// Parse parses a YAML schema document into a validated Database.
func Parse(data []byte) (*Database, error) {
	var doc schemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.CodeSyntax, err, "malformed schema document")
	}
	if doc.Name == "" {
		return nil, errors.NewSyntax("schema document missing name")
	}
	if doc.Version < 1 {
		return nil, errors.NewSyntax("schema document version must be >= 1")
	}

	b := NewBuilder(doc.Name, doc.Version)

	tableNames, tableNodes, err := mappingPairs(&doc.Table, "table")
	if err != nil {
		return nil, err
	}
	for i, name := range tableNames {
		var td tableDoc
		if err := tableNodes[i].Decode(&td); err != nil {
			return nil, errors.Wrap(errors.CodeSyntax, err, "malformed table %q", name)
		}
		if err := loadTable(b, name, &td); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

func loadTable(b *Builder, name string, td *tableDoc) error {
	tb := b.Table(name)

	colNames, colNodes, err := mappingPairs(&td.Column, "column")
	if err != nil {
		return err
	}
	for i, cname := range colNames {
		var typeName string
		if err := colNodes[i].Decode(&typeName); err != nil {
			return errors.Wrap(errors.CodeSyntax, err, "malformed column %q.%q", name, cname)
		}
		typ, err := types.ParseType(typeName)
		if err != nil {
			return errors.Wrap(errors.CodeType, err, "column %q.%q", name, cname)
		}
		tb.Column(cname, typ)
	}

	if td.Constraint != nil {
		if len(td.Constraint.PrimaryKey) > 0 {
			tb.PrimaryKey(td.Constraint.PrimaryKey...)
		}
		if len(td.Constraint.Nullable) > 0 {
			tb.Nullable(td.Constraint.Nullable...)
		}
		if !td.Constraint.Unique.IsZero() {
			uNames, uNodes, err := mappingPairs(&td.Constraint.Unique, "unique")
			if err != nil {
				return err
			}
			for i, uname := range uNames {
				var u indexDoc
				if err := uNodes[i].Decode(&u); err != nil {
					return errors.Wrap(errors.CodeSyntax, err, "malformed unique constraint %q.%q", name, uname)
				}
				tb.Unique(uname, u.Column...)
			}
		}
		if !td.Constraint.ForeignKey.IsZero() {
			fkNames, fkNodes, err := mappingPairs(&td.Constraint.ForeignKey, "foreignKey")
			if err != nil {
				return err
			}
			for i, fname := range fkNames {
				var fk foreignKeyDoc
				if err := fkNodes[i].Decode(&fk); err != nil {
					return errors.Wrap(errors.CodeSyntax, err, "malformed foreign key %q.%q", name, fname)
				}
				tb.ForeignKey(fname, fk.LocalColumn, fk.Reference, fk.RemoteColumn)
			}
		}
	}

	if !td.Index.IsZero() {
		idxNames, idxNodes, err := mappingPairs(&td.Index, "index")
		if err != nil {
			return err
		}
		for i, iname := range idxNames {
			var id indexDoc
			if err := idxNodes[i].Decode(&id); err != nil {
				return errors.Wrap(errors.CodeSyntax, err, "malformed index %q.%q", name, iname)
			}
			tb.Index(iname, id.Column...)
		}
	}

	return nil
}

// mappingPairs splits a YAML mapping node into ordered key/value pairs. Plain
// map decoding would lose declaration order, which the schema model keeps.
func mappingPairs(node *yaml.Node, what string) ([]string, []*yaml.Node, error) {
	if node.IsZero() {
		return nil, nil, errors.NewSyntax("schema document missing %s section", what)
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, errors.NewSyntax("schema %s section must be a mapping", what)
	}
	var names []string
	var values []*yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		names = append(names, node.Content[i].Value)
		values = append(values, node.Content[i+1])
	}
	return names, values, nil
}
