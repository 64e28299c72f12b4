package auth

import "github.com/Cantido/hematite/internal/apperror"

var errMissingBearer = apperror.New(apperror.Unauthenticated, "missing or malformed Authorization header, want \"Bearer <token>\"")
