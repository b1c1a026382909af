package testutil

import (
	"context"
	"os"

	"github.com/andrebq/chainmail/principal"
	"github.com/andrebq/chainmail/strategies/basic"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}

	// User is a principal plus the password it should be registered with
	User struct {
		principal.Principal
		Password string
	}
)

// AcquireUserStore opens a user database in a temporary directory and
// registers users in it. The returned func closes and removes everything.
func AcquireUserStore(ctx context.Context, t TestLog, users ...User) (*basic.Store, func()) {
	dir, err := os.MkdirTemp("", "chainmail-tests")
	if err != nil {
		t.Fatal(err)
	}
	store, err := basic.Open(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range users {
		err = store.Register(ctx, u.Principal, basic.PlainText(u.Password), nil)
		if err != nil {
			t.Fatal(err)
		}
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close user store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}
