package repositories

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateReference is returned when a generated booking reference is
// already taken; callers regenerate and retry.
var ErrDuplicateReference = errors.New("booking reference already exists")

const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// duplicateKey reports whether err is a MySQL duplicate-entry error on index.
func duplicateKey(err error, index string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	return index == "" || strings.Contains(me.Message, index)
}

// lockContention reports whether err is InnoDB giving up on a row lock held
// by a concurrent transaction.
func lockContention(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlockDetected || me.Number == mysqlLockWaitTimeout
}
