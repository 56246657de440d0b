package relay

import "github.com/go-playground/validator/v10"

// validate checks the struct tags on inbound payloads.
var validate = validator.New(validator.WithRequiredStructEnabled())
