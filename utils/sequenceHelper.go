package utils

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/vyapaarhq/books_backend/config"
)

var sequenceMutex sync.Mutex

func GetTypeName[T any]() string {
	var v T
	t := reflect.TypeOf(v)
	if t == nil {
		t = reflect.TypeOf(&v).Elem()
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// GetSequence allocates the next business-scoped sequence number for model T.
// The counter lives in redis (seeded from MAX(sequence_no) in the db); before
// returning, the candidate is re-checked against the db so a stale counter
// can never hand out a number that is already taken. Concurrent callers in
// this process are serialized by a mutex; cross-process races are caught by
// the unique index on the document number and retried by the caller.
func GetSequence[T any](ctx context.Context, businessId string) (int64, error) {
	var model T
	sequenceMutex.Lock()
	defer sequenceMutex.Unlock()
	cacheKey := businessId + "-" + strings.ToLower(GetTypeName[T]()) + "_seq"
	var seqNo int64
	var err error
	db := config.GetDB()

	for {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// if not found in redis, get from db
		if seqNo <= 1 {
			// get max seq no from db
			var dbSeq *int64
			if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Where("business_id = ?", businessId).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			// in case db has no records yet
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		// check if sequence number exists in db
		err = ValidateUnique[T](ctx, businessId, "sequence_no", seqNo, 0)
		if err == nil {
			break
		}
		// only a taken number warrants another spin; db failures surface
		var taken *ValidationError
		if !errors.As(err, &taken) {
			return 0, err
		}
	}
	return seqNo, nil
}
