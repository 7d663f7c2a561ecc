package headless

// Capability selectors, evaluated with chromedp.BySearch.
const (
	clickableXPath = "//a | //button | //input[@type='submit'] | //*[@onclick]"
	titledXPath    = "//*[@title]"
	allXPath       = "//*"
)

// Functions called with the element bound to this.
const (
	rectScript = `function() {
	const r = this.getBoundingClientRect();
	return {
		x: Math.round(r.left + window.scrollX),
		y: Math.round(r.top + window.scrollY),
		width: Math.round(r.width),
		height: Math.round(r.height),
	};
}`

	textScript = `function() {
	return (this.innerText || '').trim();
}`

	attributeScript = `function(name) {
	if (name === 'value' && typeof this.value === 'string') {
		return this.value;
	}
	const v = this.getAttribute(name);
	return v === null ? '' : v;
}`

	visibleScript = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') {
		return false;
	}
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`

	innerHTMLScript = `function() {
	return this.innerHTML || '';
}`

	childCountScript = `function() {
	return this.childElementCount;
}`

	hoverPointScript = `function() {
	if (this.scrollIntoViewIfNeeded) {
		this.scrollIntoViewIfNeeded(true);
	} else {
		this.scrollIntoView({block: 'center', inline: 'center'});
	}
	const r = this.getBoundingClientRect();
	return {x: r.left + r.width / 2, y: r.top + r.height / 2};
}`
)

// Evaluated in page scope.
const contentSizeScript = `({
	width: document.body.scrollWidth,
	height: document.body.scrollHeight,
})`

// Substrings of CDP errors raised for detached or unknown nodes.
var staleNodeMessages = []string{
	"could not find node with given id",
	"no node with given id",
	"node with given id does not belong to the document",
	"cannot find context with specified id",
	"node is detached from document",
}
