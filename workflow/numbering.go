package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Document numbers look like INV-20240115-0001: prefix, day, then a
// per-day sequence. The column carries a UNIQUE index; NextDailyNumber
// reads the current max inside the caller's transaction and the caller
// retries the whole transaction when two writers race onto the same
// number.
const maxNumberRetries = 3

func FormatDailyNumber(prefix string, date time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), sequence)
}

// parseNumberSuffix extracts the trailing sequence from a document number.
func parseNumberSuffix(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("malformed document number %q", number)
	}
	return strconv.Atoi(number[idx+1:])
}

// NextDailyNumber computes the next document number for the given day by
// scanning the table's current maximum on the caller's transaction.
func NextDailyNumber(tx *gorm.DB, tableName string, columnName string, prefix string, date time.Time) (string, error) {
	dayPrefix := fmt.Sprintf("%s-%s-", prefix, date.Format("20060102"))

	// Longer numbers sort first so a five-digit suffix outranks 9999;
	// plain string ordering would allocate 10000 forever once reached.
	var lastNumber string
	err := tx.Table(tableName).
		Where(columnName+" LIKE ?", dayPrefix+"%").
		Order("LENGTH(" + columnName + ") DESC, " + columnName + " DESC").
		Limit(1).
		Pluck(columnName, &lastNumber).Error
	if err != nil {
		return "", err
	}

	sequence := 1
	if lastNumber != "" {
		lastSeq, err := parseNumberSuffix(lastNumber)
		if err != nil {
			return "", err
		}
		sequence = lastSeq + 1
	}
	return FormatDailyNumber(prefix, date, sequence), nil
}

// IsDuplicateKeyErr reports a MySQL duplicate key violation (error 1062),
// the signal that a concurrent transaction claimed the same number.
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ErrDocumentNumberConflict is what callers see when every retry lost the
// race for a document number.
var ErrDocumentNumberConflict = errors.New("document number conflict persisted after retries")

// conflictAfterRetries converts an exhausted duplicate-key error into the
// generic conflict error; anything else passes through untouched.
func conflictAfterRetries(err error) error {
	if err != nil && IsDuplicateKeyErr(err) {
		return fmt.Errorf("%w: %v", ErrDocumentNumberConflict, err)
	}
	return err
}
