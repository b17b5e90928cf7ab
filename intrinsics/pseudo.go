package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

// AWS_STACK_NAME returns the name of the stack. Output exports are prefixed
// with it.
var AWS_STACK_NAME = intrinsics.AWS_STACK_NAME
