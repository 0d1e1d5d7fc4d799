package interfaces

import (
	"github.com/pulseboard/backend/internal/interfaces/http"
)

// HTTPServer HTTP 服务器类型别名
type HTTPServer = http.HTTPServer
