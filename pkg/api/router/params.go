package router

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/utils"
)

func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// PathInt64 parses a numeric path parameter, writing a 400 when it is not one.
func PathInt64(ctx *fasthttp.RequestCtx, param string) (int64, bool) {
	id, err := strconv.ParseInt(PathParam(ctx, param), 10, 64)
	if err != nil || id <= 0 {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid "+param)
		return 0, false
	}
	return id, true
}

func Query(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// QueryInt64 returns def when the argument is absent and an error when it is
// not an integer.
func QueryInt64(ctx *fasthttp.RequestCtx, key string, def int64) (int64, error) {
	v := Query(ctx, key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

// QueryMicros parses a microsecond epoch argument into a time, zero if absent.
func QueryMicros(ctx *fasthttp.RequestCtx, key string) (time.Time, error) {
	us, err := QueryInt64(ctx, key, 0)
	if err != nil || us == 0 {
		return time.Time{}, err
	}
	return utils.MicrosecondsToDatetime(us), nil
}

// DecodeBody unmarshals the JSON request body into dst, writing a 400 on
// failure.
func DecodeBody(ctx *fasthttp.RequestCtx, dst any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "request body required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}
