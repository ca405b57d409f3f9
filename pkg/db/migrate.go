package db

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bgp-cmdb/pkg/model"
)

type tabler interface {
	TableName() string
}

// Constraint is a foreign key declared by Migrate.
type Constraint struct {
	Table    string
	Name     string
	Column   string
	RefTable string
}

// SQL returns the statement adding the constraint. Deletes are restricted at the storage
// level; the cascade engine removes dependents before their parents.
func (c Constraint) SQL() string {
	return fmt.Sprintf("ALTER TABLE `%s` ADD CONSTRAINT `%s` FOREIGN KEY (`%s`) REFERENCES `%s` (`id`) ON DELETE RESTRICT",
		c.Table, c.Name, c.Column, c.RefTable)
}

// Constraints lists the foreign keys of the schema in a stable order.
func Constraints() []Constraint {
	var out []Constraint
	for _, kind := range model.Kinds {
		fks := model.ForeignKeys[kind]
		table := model.New(kind).(tabler).TableName()
		for _, col := range slices.Sorted(maps.Keys(fks)) {
			out = append(out, Constraint{
				Table:    table,
				Name:     "fk_" + table + "_" + col,
				Column:   col,
				RefTable: model.New(fks[col]).(tabler).TableName(),
			})
		}
	}
	return out
}

// Migrate creates or updates every table, then adds the missing foreign keys.
func Migrate(db *gorm.DB) error {
	for _, kind := range model.Kinds {
		if err := db.AutoMigrate(model.New(kind)); err != nil {
			return fmt.Errorf("migrate %s: %w", kind, err)
		}
	}
	m := db.Migrator()
	for _, c := range Constraints() {
		if m.HasConstraint(c.Table, c.Name) {
			continue
		}
		if err := db.Exec(c.SQL()).Error; err != nil {
			return fmt.Errorf("add %s: %w", c.Name, err)
		}
		logrus.WithField("constraint", c.Name).Info("foreign key added")
	}
	return nil
}
