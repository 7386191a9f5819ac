package tokenizer

import "errors"

// ErrConfig reports a malformed or incomplete tokenizer definition.
var ErrConfig = errors.New("tokenizer: invalid definition")
