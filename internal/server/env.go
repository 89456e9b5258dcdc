package server

import (
	pkgutil "github.com/faciam-dev/docmeta/pkg/util"
)

// defaultOrigins are the local dev servers of browser front ends.
const defaultOrigins = "http://localhost:3000,http://localhost:5173"

// allowedOrigins returns the CORS origins from ALLOWED_ORIGINS.
func allowedOrigins() []string {
	return pkgutil.GetEnvList("ALLOWED_ORIGINS", defaultOrigins)
}
