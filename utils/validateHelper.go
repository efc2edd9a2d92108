package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/pos_backend/config"
)

// check if id exists, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ResourceCountWhere[T any](ctx context.Context, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).Where(cond, values...).Count(&count).Error
	return count, err
}

// check uniqueness of a column value, excluding the given id (id = 0 for create)
func ValidateUnique[T any](ctx context.Context, field string, value interface{}, id int) error {
	db := config.GetDB()
	var model T
	var count int64
	dbCtx := db.WithContext(ctx).Model(&model).Where(field+" = ?", value)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New(field + " already exists")
	}
	return nil
}
