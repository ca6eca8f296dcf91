package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// messageDataField Stream 訊息中放置資料的欄位
const messageDataField = "data"

var (
	ErrPointerType = errors.New("pointer type is not allowed")
	ErrMissingData = errors.New("data field not found or invalid type")
)

// DefaultParseToMessage 以 msgpack + base64 將資料編碼成 Stream 訊息
func DefaultParseToMessage[T any](data T) (map[string]any, error) {
	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		return nil, ErrPointerType
	}

	raw, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}

	return map[string]any{
		messageDataField: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// DefaultParseFromMessage 將 DefaultParseToMessage 產生的訊息解碼
// 空訊息會回傳零值
func DefaultParseFromMessage[T any](message map[string]any) (T, error) {
	var result T

	if reflect.TypeOf(result).Kind() == reflect.Ptr {
		return result, ErrPointerType
	}
	if len(message) == 0 {
		return result, nil
	}

	encoded, ok := message[messageDataField].(string)
	if !ok {
		return result, ErrMissingData
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return result, fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("msgpack unmarshal error: %w", err)
	}

	return result, nil
}
