package db

import (
	"errors"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"bgp-cmdb/pkg/model"
)

func TestConstraintsCoverForeignKeys(t *testing.T) {
	cs := Constraints()
	n := 0
	for _, cols := range model.ForeignKeys {
		n += len(cols)
	}
	require.Len(t, cs, n)

	names := map[string]bool{}
	for _, c := range cs {
		require.False(t, names[c.Name], "duplicate constraint %s", c.Name)
		names[c.Name] = true
	}
	require.Equal(t, Constraint{
		Table:    "route_policies",
		Name:     "fk_route_policies_device_id",
		Column:   "device_id",
		RefTable: "devices",
	}, cs[0])
}

func TestConstraintSQL(t *testing.T) {
	c := Constraint{Table: "bgp_sessions", Name: "fk_bgp_sessions_peer_a_id", Column: "peer_a_id", RefTable: "device_bgp_sessions"}
	require.Equal(t,
		"ALTER TABLE `bgp_sessions` ADD CONSTRAINT `fk_bgp_sessions_peer_a_id` FOREIGN KEY (`peer_a_id`) REFERENCES `device_bgp_sessions` (`id`) ON DELETE RESTRICT",
		c.SQL())
}

func TestUnknownDatabase(t *testing.T) {
	require.True(t, unknownDatabase(&mysqldrv.MySQLError{Number: 1049, Message: "Unknown database 'cmdb'"}))
	require.False(t, unknownDatabase(&mysqldrv.MySQLError{Number: 1045, Message: "Access denied"}))
	require.True(t, unknownDatabase(errors.New("Error 1049: Unknown database 'cmdb'")))
	require.False(t, unknownDatabase(errors.New("connection refused")))
}

func TestCreateDatabaseNeedsName(t *testing.T) {
	require.Error(t, createDatabase("root@tcp(127.0.0.1:3306)/"))
}
