// Package status holds the tri-state result of a fetch.
//
// A FetchStatus is built only through Loading, Success and Failure, so a
// SUCCESS never carries a message and an ERROR always carries one.
package status

import (
	"encoding/json"
	"fmt"
)

type Kind int

const (
	KindLoading Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "LOADING"
	case KindSuccess:
		return "SUCCESS"
	case KindError:
		return "ERROR"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// FallbackMessage is used when a failure has no description of its own.
const FallbackMessage = "Unknown error"

type FetchStatus[T any] struct {
	kind    Kind
	data    T
	message string
}

func Loading[T any]() FetchStatus[T] {
	return FetchStatus[T]{kind: KindLoading}
}

func Success[T any](data T) FetchStatus[T] {
	return FetchStatus[T]{kind: KindSuccess, data: data}
}

func Failure[T any](message string) FetchStatus[T] {
	if message == "" {
		message = FallbackMessage
	}
	return FetchStatus[T]{kind: KindError, message: message}
}

func (s FetchStatus[T]) Kind() Kind { return s.kind }

// Data returns the payload; ok is false unless the status is SUCCESS.
func (s FetchStatus[T]) Data() (T, bool) {
	return s.data, s.kind == KindSuccess
}

// Message returns the failure text; ok is false unless the status is ERROR.
func (s FetchStatus[T]) Message() (string, bool) {
	return s.message, s.kind == KindError
}

// Match calls exactly one of the handlers depending on the kind.
func (s FetchStatus[T]) Match(onLoading func(), onSuccess func(T), onError func(string)) {
	switch s.kind {
	case KindSuccess:
		onSuccess(s.data)
	case KindError:
		onError(s.message)
	default:
		onLoading()
	}
}

// Fold is Match with a result.
func Fold[T, R any](s FetchStatus[T], onLoading func() R, onSuccess func(T) R, onError func(string) R) R {
	var out R
	s.Match(
		func() { out = onLoading() },
		func(data T) { out = onSuccess(data) },
		func(msg string) { out = onError(msg) },
	)
	return out
}

type wireStatus[T any] struct {
	Status  string `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s FetchStatus[T]) MarshalJSON() ([]byte, error) {
	w := wireStatus[T]{Status: s.kind.String()}
	switch s.kind {
	case KindSuccess:
		data := s.data
		w.Data = &data
	case KindError:
		w.Message = s.message
	}
	return json.Marshal(w)
}

func (s *FetchStatus[T]) UnmarshalJSON(b []byte) error {
	var w wireStatus[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Status {
	case "LOADING":
		*s = Loading[T]()
	case "SUCCESS":
		var data T
		if w.Data != nil {
			data = *w.Data
		}
		*s = Success(data)
	case "ERROR":
		*s = Failure[T](w.Message)
	default:
		return fmt.Errorf("status: unknown kind %q", w.Status)
	}
	return nil
}
