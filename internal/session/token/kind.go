package token

import (
	"fmt"
	"time"
)

// Kind is the closed set of tokens the engine mints.
type Kind uint8

const (
	KindAccess Kind = iota + 1
	KindRefresh
	KindSession
	KindReauth
)

var kindNames = map[Kind]string{
	KindAccess:  "access",
	KindRefresh: "refresh",
	KindSession: "session",
	KindReauth:  "reauth",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps the "knd" claim value back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("token: unknown kind %q", s)
}

type keySlot uint8

const (
	slotAccess keySlot = iota
	slotRefresh
	slotSession
	slotCount
)

type registryCheck uint8

const (
	checkNone registryCheck = iota

	// access:<jti> must exist and point at the claims' rjti
	checkAccessBinding

	// refresh:<rjti> must exist
	checkRefreshLive
)

// policy is everything that differs between kinds. Create, Decode and Verify
// are written once and read their behaviour from here.
type policy struct {
	slot     keySlot
	ttl      func(TTLs) time.Duration
	check    registryCheck
	extended bool
}

var policies = map[Kind]policy{
	KindAccess: {
		slot:  slotAccess,
		ttl:   func(t TTLs) time.Duration { return t.Access },
		check: checkAccessBinding,
	},
	KindRefresh: {
		slot:  slotRefresh,
		ttl:   func(t TTLs) time.Duration { return t.Refresh },
		check: checkRefreshLive,
	},
	KindSession: {
		slot:     slotSession,
		ttl:      func(t TTLs) time.Duration { return t.Session },
		check:    checkNone,
		extended: true,
	},
	KindReauth: {
		slot:  slotAccess,
		ttl:   func(t TTLs) time.Duration { return t.Access },
		check: checkNone,
	},
}

func policyFor(k Kind) (policy, bool) {
	p, ok := policies[k]
	return p, ok
}
