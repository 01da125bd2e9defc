package exchangefakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth"
)

var _ slackoauth.Exchanger = (*FakeExchanger)(nil)

// FakeExchanger hands out a preset installation per code. Codes are single
// use: a second exchange of the same code fails like Slack's code_already_used.
type FakeExchanger struct {
	grants  map[string]installations.Installation
	used    map[string]struct{}
	nowTime func() time.Time
	calls   int
	lock    sync.Mutex
}

func NewFakeExchanger(nowFunc func() time.Time) *FakeExchanger {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &FakeExchanger{
		grants:  make(map[string]installations.Installation),
		used:    make(map[string]struct{}),
		nowTime: nowFunc,
	}
}

// AddGrant registers code as exchangeable for installation. InstalledAt is
// stamped at exchange time.
func (fe *FakeExchanger) AddGrant(code string, installation installations.Installation) {
	fe.lock.Lock()
	defer fe.lock.Unlock()
	fe.grants[code] = installation
}

func (fe *FakeExchanger) ExchangeCode(_ context.Context, code string) (*installations.Installation, error) {
	fe.lock.Lock()
	defer fe.lock.Unlock()
	fe.calls++

	if _, ok := fe.used[code]; ok {
		return nil, fmt.Errorf("code_already_used: %w", gwerrors.ErrExchange)
	}
	grant, ok := fe.grants[code]
	if !ok {
		return nil, fmt.Errorf("invalid_code: %w", gwerrors.ErrExchange)
	}
	fe.used[code] = struct{}{}
	grant.InstalledAt = fe.nowTime().UTC()
	return &grant, nil
}

// Calls returns how many exchanges were attempted.
func (fe *FakeExchanger) Calls() int {
	fe.lock.Lock()
	defer fe.lock.Unlock()
	return fe.calls
}
