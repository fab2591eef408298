package checkout

import (
	"encoding/json"
	"fmt"

	"github.com/danpilch/tripdesk/internal/catalog"
)

// Aliases are the labels booking sites use for each coach class.
var Aliases = map[catalog.FareClass][]string{
	catalog.ClassSleeper:        {"Sleeper", "SL"},
	catalog.ClassThirdAC:        {"3AC", "3A", "3rd AC", "AC 3 Tier"},
	catalog.ClassSecondAC:       {"2AC", "2A", "2nd AC", "AC 2 Tier"},
	catalog.ClassFirstAC:        {"1AC", "1A", "1st AC", "AC First Class"},
	catalog.ClassChairCar:       {"CC", "Chair Car", "AC Chair Car"},
	catalog.ClassFirstClass:     {"FC", "First Class"},
	catalog.ClassExecutiveChair: {"EC", "Executive Chair", "Exec. Chair Car"},
}

// BookKeywords are matched against button text in priority order.
var BookKeywords = []string{"book now", "book", "continue", "proceed"}

var containerSelectors = map[catalog.Kind]string{
	catalog.KindTrain:    `[class*="train"], [class*="result"], [data-test*="train"], tr`,
	catalog.KindBus:      `[class*="bus"], [class*="result"], [data-test*="bus"], tr`,
	catalog.KindActivity: `[class*="activity"], [class*="result"], [class*="card"], [data-test*="activity"]`,
}

func jsValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func locateByAttributeScript(identifier string) string {
	return fmt.Sprintf(`/* locate:attribute */ (() => {
  const id = CSS.escape(%s);
  const attrs = ["data-train", "data-trainnumber", "data-train-number", "data-number", "data-id"];
  for (const attr of attrs) {
    const sel = "[" + attr + "=\"" + id + "\"]";
    const el = document.querySelector(sel);
    if (el) {
      el.scrollIntoView({block: "center"});
      el.click();
      return {matched: true, via: sel, text: ""};
    }
  }
  return {matched: false, via: "", text: ""};
})()`, jsValue(identifier))
}

// locateByTextScript clicks the smallest container whose text holds the
// identifier, so page-wide wrappers lose to the listing card itself.
func locateByTextScript(identifier string, kind catalog.Kind) string {
	sel, ok := containerSelectors[kind]
	if !ok {
		sel = containerSelectors[catalog.KindTrain]
	}
	return fmt.Sprintf(`/* locate:text */ (() => {
  const id = %s;
  let best = null;
  let bestLen = Infinity;
  for (const el of document.querySelectorAll(%s)) {
    const text = el.innerText || el.textContent || "";
    if (text.includes(id) && text.length < bestLen) {
      best = el;
      bestLen = text.length;
    }
  }
  if (!best) {
    return {matched: false, via: "", text: ""};
  }
  best.scrollIntoView({block: "center"});
  best.click();
  return {matched: true, via: "text", text: (best.innerText || "").trim().slice(0, 80)};
})()`, jsValue(identifier), jsValue(sel))
}

func selectClassScript(class catalog.FareClass) string {
	aliases := Aliases[class]
	if len(aliases) == 0 {
		aliases = []string{string(class)}
	}
	return fmt.Sprintf(`/* select:class */ (() => {
  const code = %s;
  const aliases = %s.map(a => a.toLowerCase());
  for (const input of document.querySelectorAll('input[type="radio"], input[type="checkbox"]')) {
    if ((input.value || "").toUpperCase().includes(code)) {
      input.click();
      return {matched: true, via: "input", text: input.value};
    }
  }
  for (const el of document.querySelectorAll('button, label, a, li, span, [role="button"], [class*="class"], [class*="coach"]')) {
    const text = (el.innerText || el.textContent || "").trim().toLowerCase();
    if (text && text.length <= 40 && aliases.some(a => text === a || text.includes(a))) {
      el.click();
      return {matched: true, via: "alias", text: text};
    }
  }
  for (const sel of document.querySelectorAll("select")) {
    for (const opt of sel.options) {
      const text = (opt.value + " " + opt.text).toLowerCase();
      if (aliases.some(a => text.includes(a))) {
        sel.value = opt.value;
        sel.dispatchEvent(new Event("change", {bubbles: true}));
        return {matched: true, via: "select", text: opt.text};
      }
    }
  }
  return {matched: false, via: "", text: ""};
})()`, jsValue(string(class)), jsValue(aliases))
}

func bookScript() string {
	return fmt.Sprintf(`/* click:book */ (() => {
  const keywords = %s;
  const els = Array.from(document.querySelectorAll('button, a, input[type="submit"], input[type="button"], [role="button"], [class*="book"], [data-test*="book"]'));
  for (const kw of keywords) {
    for (const el of els) {
      const text = (el.innerText || el.value || el.textContent || "").trim().toLowerCase();
      if (text && text.length <= 40 && text.includes(kw)) {
        const anchor = el.closest("a");
        const newTab = (anchor && anchor.target === "_blank") || el.getAttribute("target") === "_blank";
        el.scrollIntoView({block: "center"});
        el.click();
        return {matched: true, via: kw, text: text, new_tab: !!newTab, href: anchor ? anchor.href : ""};
      }
    }
  }
  return {matched: false, via: "", text: "", new_tab: false, href: ""};
})()`, jsValue(BookKeywords))
}
