// Package trace extends the httptrace.ClientTrace and adds hooks for the request execution.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// Factory creates ClientTrace hooks for a request.
type Factory func(ctx context.Context, cfg *request.Config) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing request.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the response head is received. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// RequestProcessed is called when the Client.Execute method is done.
	// The result is the *client.Response, the err is its transport error, if any.
	RequestProcessed func(result any, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Hooks from the old are called first, hooks of the embedded httptrace.ClientTrace are composed too.
// Based on the httptrace.compose.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	composeHooks(reflect.ValueOf(t).Elem(), reflect.ValueOf(old).Elem())
}

func composeHooks(tv, ov reflect.Value) {
	structType := tv.Type()
	for i := range structType.NumField() {
		tf := tv.Field(i)
		hookType := tf.Type()
		if hookType.Kind() == reflect.Struct {
			composeHooks(tf, ov.Field(i))
			continue
		}
		if hookType.Kind() != reflect.Func {
			continue
		}
		of := ov.Field(i)
		if of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())

		// We need to call both tf and of in some order.
		newFunc := reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			of.Call(args)
			return tfCopy.Call(args)
		})
		tf.Set(newFunc)
	}
}
