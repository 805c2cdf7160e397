package command

import (
	"strings"
	"time"

	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// Set stores the value of a key, with an optional expiration. HasTTL
// distinguishes "no EX/PX option given" from an explicit zero-duration
// expiry (which expires the key immediately); TTL is only meaningful
// when HasTTL is true.
type Set struct {
	Key    string
	Value  []byte
	TTL    time.Duration
	HasTTL bool
}

func parseSet(p *resp.Parser) (Set, error) {
	key, err := p.NextString()
	if err != nil {
		return Set{}, err
	}
	value, err := p.NextBytes()
	if err != nil {
		return Set{}, err
	}

	var ttl time.Duration
	var hasTTL bool
	switch opt, err := p.NextString(); {
	case err == resp.ErrEndOfStream:
		// no expiration option given

	case err != nil:
		return Set{}, err

	default:
		hasTTL = true
		switch strings.ToUpper(opt) {
		case "EX":
			secs, err := p.NextInt()
			if err != nil {
				return Set{}, err
			}
			ttl = time.Duration(secs) * time.Second
		case "PX":
			ms, err := p.NextInt()
			if err != nil {
				return Set{}, err
			}
			ttl = time.Duration(ms) * time.Millisecond
		default:
			return Set{}, errUnsupportedSetOption
		}
	}

	return Set{Key: key, Value: value, TTL: ttl, HasTTL: hasTTL}, nil
}

// Name honors the Command interface.
func (c Set) Name() string { return "set" }

// Apply stores the value and responds Simple("OK").
func (c Set) Apply(st *store.Store, conn Conn) error {
	var ttl *time.Duration
	if c.HasTTL {
		ttl = &c.TTL
	}
	st.Set(c.Key, c.Value, ttl)
	return conn.WriteFrame(resp.Simple("OK"))
}

// IntoFrame converts the command into its wire representation, always
// using the PX form for the expiration, matching the server's own
// millisecond-precision TTL.
func (c Set) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("set"))
	f.PushBulk([]byte(c.Key))
	f.PushBulk(c.Value)
	if c.HasTTL {
		f.PushBulk([]byte("px"))
		f.PushInt(uint64(c.TTL / time.Millisecond))
	}
	return f
}
