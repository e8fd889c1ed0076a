//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/event"
	"context"
	"reflect"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is the live handle of one client.
// Handles are compared with ==, so implementations must be pointer types.
type Connection interface {
	Consume(ctx context.Context, e event.Outbound) error
}

type IRegistry interface {
	Register(identityID string, conn Connection) (fresh bool, previous Connection)
	Resolve(identityID string) (Connection, bool)
	Unregister(conn Connection) (identityID string, ok bool)
	IdentityOf(conn Connection) (string, bool)
	Online() []string
	Connections() []Connection
	// Len is the number of registered identities.
	Len() int
}

// PresenceRecorder mirrors presence transitions into the durable online flag.
// Implementations are best-effort and never report failures to the caller.
type PresenceRecorder interface {
	Record(ctx context.Context, identityID string, online bool)
}
