package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// element is a crawler.Element resolved from a cdp.Node.
type element struct {
	node    *cdp.Node
	session *Session
}

func (e *element) Key() string {
	return strconv.FormatInt(int64(e.node.BackendNodeID), 10)
}

func (e *element) Rect(ctx context.Context) (crawler.Rect, error) {
	var r crawler.Rect
	if err := e.call(ctx, rectScript, &r); err != nil {
		return crawler.Rect{}, err
	}
	return r, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.call(ctx, textScript, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	if err := e.call(ctx, attributeScript, &value, name); err != nil {
		return "", err
	}
	return value, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.call(ctx, visibleScript, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (e *element) InnerHTML(ctx context.Context) (string, error) {
	var html string
	if err := e.call(ctx, innerHTMLScript, &html); err != nil {
		return "", err
	}
	return html, nil
}

func (e *element) ChildCount(ctx context.Context) (int, error) {
	var n int
	if err := e.call(ctx, childCountScript, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// call runs fn with the node bound to this and decodes its JSON result into res.
func (e *element) call(ctx context.Context, fn string, res any, args ...any) error {
	s := e.session
	err := s.run(ctx, s.cfg.WaitTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		// Release fails once the page has navigated away.
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		params, err := callParams(fn, obj.ObjectID, args...)
		if err != nil {
			return err
		}
		value, exception, err := params.Do(ctx)
		if err != nil {
			return err
		}
		return decodeResult(value, exception, res)
	}))
	if err != nil {
		return s.classify("element "+e.Key(), err)
	}
	return nil
}

// callParams builds a by-value call of fn on object with JSON encoded args.
func callParams(fn string, object runtime.RemoteObjectID, args ...any) (*runtime.CallFunctionOnParams, error) {
	p := runtime.CallFunctionOn(fn).
		WithObjectID(object).
		WithReturnByValue(true).
		WithSilent(true)
	if len(args) == 0 {
		return p, nil
	}
	encoded := make([]*runtime.CallArgument, 0, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		encoded = append(encoded, &runtime.CallArgument{Value: raw})
	}
	return p.WithArguments(encoded), nil
}

// decodeResult maps a thrown exception to an error and unmarshals the
// returned value into res. An undefined result leaves res untouched.
func decodeResult(value *runtime.RemoteObject, exception *runtime.ExceptionDetails, res any) error {
	if exception != nil {
		return fmt.Errorf("script exception: %w", exception)
	}
	if res == nil || value == nil || len(value.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(value.Value, res); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}
