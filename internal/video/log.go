package video

import "github.com/kaimana/eyespy/internal/logging"

var log = logging.DefaultLogger.WithTag("video")
