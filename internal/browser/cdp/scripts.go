// internal/browser/cdp/scripts.go
package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// jsLiteral encodes v as a JavaScript literal. JSON is a subset of JS
// expression syntax, so strings come out quoted and escaped.
func jsLiteral(v any) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// queryExpr is a JS expression resolving selector, inside the iframe matching
// frame when one is given. A missing or cross-origin frame resolves to null.
func queryExpr(frame, selector string) string {
	if frame == "" {
		return fmt.Sprintf("document.querySelector(%s)", jsLiteral(selector))
	}
	return fmt.Sprintf(`(() => {
		try {
			const f = document.querySelector(%s);
			const d = f && (f.contentDocument || f.contentWindow.document);
			return d ? d.querySelector(%s) : null;
		} catch (e) { return null; }
	})()`, jsLiteral(frame), jsLiteral(selector))
}

// offsetExpr is the top-left of frame in the outer viewport.
func offsetExpr(frame string) string {
	if frame == "" {
		return "{left: 0, top: 0}"
	}
	return fmt.Sprintf("document.querySelector(%s).getBoundingClientRect()", jsLiteral(frame))
}

// rectScript reports the element's client rect and the document scroll
// offsets, or found=false. Rects inside a frame are shifted by the frame's
// position.
func rectScript(frame, selector string) string {
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) { return {found: false}; }
	const r = el.getBoundingClientRect();
	const o = %s;
	return {
		found: true,
		left: r.left + o.left, top: r.top + o.top, width: r.width, height: r.height,
		scrollX: window.scrollX, scrollY: window.scrollY
	};
})()`, queryExpr(frame, selector), offsetExpr(frame))
}

func scrollScript(frame, selector, block, behavior string) string {
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) { return false; }
	el.scrollIntoView({block: %s, behavior: %s});
	return true;
})()`, queryExpr(frame, selector), jsLiteral(block), jsLiteral(behavior))
}

const scrollPositionScript = `[window.scrollX, window.scrollY]`

func dispatchScript(frame, selector, eventType string, x, y float64, button int) string {
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) { return false; }
	el.dispatchEvent(new MouseEvent(%s, {
		bubbles: true, cancelable: true,
		clientX: %s, clientY: %s, button: %d
	}));
	return true;
})()`, queryExpr(frame, selector), jsLiteral(eventType), jsLiteral(x), jsLiteral(y), button)
}

func existsScript(frame, selector string) string {
	return fmt.Sprintf(`%s !== null`, queryExpr(frame, selector))
}

const bodyPresentScript = `document.body !== null`

// frameStateScript reports whether the iframe exists and the readyState of
// its document. A cross-origin document reads as "".
func frameStateScript(frame string) string {
	return fmt.Sprintf(`(() => {
	const f = document.querySelector(%s);
	if (!f) { return {found: false, state: ""}; }
	try {
		const d = f.contentDocument || f.contentWindow.document;
		return {found: true, state: d ? d.readyState : ""};
	} catch (e) { return {found: true, state: ""}; }
})()`, jsLiteral(frame))
}

// markerScript drops a small dot just below the click point and fades it out.
func markerScript(x, y float64, color string) string {
	return fmt.Sprintf(`(() => {
	const dot = document.createElement('div');
	dot.style.cssText = 'position:absolute;top:' + (%s + 5) + 'px;left:' + (%s - 5) + 'px;' +
		'background:' + %s + ';border-radius:5px;width:10px;height:10px;' +
		'border:1px solid black;z-index:99999;opacity:0;transition:opacity 300ms;pointer-events:none;';
	document.body.appendChild(dot);
	requestAnimationFrame(() => { dot.style.opacity = '1'; });
	setTimeout(() => {
		dot.style.transition = 'opacity 2000ms';
		dot.style.opacity = '0';
		setTimeout(() => dot.remove(), 2000);
	}, 300);
	return true;
})()`, jsLiteral(y), jsLiteral(x), jsLiteral(color))
}
