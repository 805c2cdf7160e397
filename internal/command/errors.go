package command

import (
	"fmt"

	"github.com/fredguile/miniredis/internal/resp"
)

// errUnsupportedSetOption signals a SET trailing token other than the
// one supported EX/PX expiration keyword.
var errUnsupportedSetOption = fmt.Errorf("%w: SET only supports the EX/PX expiration option", resp.ErrProtocol)
