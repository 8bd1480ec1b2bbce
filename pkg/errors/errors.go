// Package errors 提供排名服務的錯誤分類
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotLoaded 槽位尚未載入玩家資料
	ErrCodeNotLoaded = "NOT_LOADED"
	// ErrCodeInvalidActor 非真人玩家或無效的會話
	ErrCodeInvalidActor = "INVALID_ACTOR"
	// ErrCodeStorageUnavailable 持久層不可用
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeUnavailable 服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 回傳帶有詳細資訊的副本，不修改預定義錯誤
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrNotLoaded 槽位未載入
	ErrNotLoaded = New(ErrCodeNotLoaded, "player is not loaded to the cache")

	// ErrInvalidActor 非真人會話（BOT、觀戰者或已失效的槽位）
	ErrInvalidActor = New(ErrCodeInvalidActor, "player is not a valid human session")

	// ErrStorageUnavailable 資料庫操作失敗
	ErrStorageUnavailable = New(ErrCodeStorageUnavailable, "storage unavailable")

	// ErrInvalidInput 無效輸入
	ErrInvalidInput = New(ErrCodeInvalidInput, "invalid input")

	// ErrPlayerNotFound 持久層中沒有該玩家
	ErrPlayerNotFound = New(ErrCodeNotFound, "player not found")

	// ErrServiceUnavailable 依賴尚未就緒
	ErrServiceUnavailable = New(ErrCodeUnavailable, "service unavailable")
)

// IsNotLoaded 檢查是否為未載入錯誤
func IsNotLoaded(err error) bool {
	return hasCode(err, ErrCodeNotLoaded)
}

// IsInvalidActor 檢查是否為無效玩家錯誤
func IsInvalidActor(err error) bool {
	return hasCode(err, ErrCodeInvalidActor)
}

// IsStorageUnavailable 檢查是否為持久層錯誤
func IsStorageUnavailable(err error) bool {
	return hasCode(err, ErrCodeStorageUnavailable)
}

// IsInvalidInput 檢查是否為輸入錯誤
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsUnavailable 檢查是否為服務不可用錯誤
func IsUnavailable(err error) bool {
	return hasCode(err, ErrCodeUnavailable)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
