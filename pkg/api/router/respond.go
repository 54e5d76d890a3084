package router

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

func WriteJSON(ctx *fasthttp.RequestCtx, data any) error {
	ctx.Response.Header.Set("Content-Type", "application/json")
	return json.NewEncoder(ctx).Encode(data)
}

// WriteJSONStatus writes data with the given status code.
func WriteJSONStatus(ctx *fasthttp.RequestCtx, status int, data any) {
	ctx.SetStatusCode(status)
	_ = WriteJSON(ctx, data)
}

func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSONStatus(ctx, status, map[string]string{"error": message})
}

// WriteFieldErrors writes a 400 carrying per-field messages.
func WriteFieldErrors(ctx *fasthttp.RequestCtx, message string, fields map[string][]string) {
	WriteJSONStatus(ctx, fasthttp.StatusBadRequest, map[string]any{"error": message, "fields": fields})
}

func WriteJSONOk(ctx *fasthttp.RequestCtx) {
	_ = WriteJSON(ctx, map[string]bool{"ok": true})
}
