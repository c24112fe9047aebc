package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/preview"
)

// shellStylesheet styles the editor page itself. Preview documents get
// their styles from the compiler, never from here.
const shellStylesheet = "https://cdn.tailwindcss.com"

// Bounds in percent for the editor side of the split.
const (
	minPanePercent = 20
	maxPanePercent = 80
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>livepen</title>
<script src="%s"></script>
</head>
<body class="bg-neutral-900 text-neutral-100 h-screen flex overflow-hidden">
`

// EditorPage renders the editor shell for state: the tab bar, the buffer
// textarea, class hints and the preview frame.
func EditorPage(state editor.State) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		initial, err := json.Marshal(state)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, pageHead, shellStylesheet); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<section id="editor-pane" class="flex flex-col min-w-0" style="width:50%">`); err != nil {
			return err
		}
		if err := TabBar(state.Tab).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<textarea id="editor" class="flex-1 w-full p-4 bg-neutral-950 text-neutral-100 font-mono text-sm resize-none outline-none" spellcheck="false" autocomplete="off" data-language="%s" aria-label="Editor">%s</textarea>`,
			templ.EscapeString(state.Language), templ.EscapeString(activeBuffer(state))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<ul id="hints" class="hidden max-h-40 overflow-y-auto bg-neutral-800 text-sm font-mono" role="listbox"></ul></section>`); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<div id="split-handle" role="separator" tabindex="0" aria-orientation="vertical" aria-label="Resize panes" aria-valuemin="%[1]d" aria-valuemax="%[2]d" aria-valuenow="50" data-min="%[1]d" data-max="%[2]d" class="w-1 shrink-0 cursor-col-resize bg-neutral-700 hover:bg-sky-500 focus:bg-sky-500 outline-none"></div>`,
			minPanePercent, maxPanePercent); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<section id="preview-pane" class="flex flex-col min-w-0" style="width:50%">`); err != nil {
			return err
		}
		if err := preview.Frame(state.Output, state.Generation, state.Status == editor.StatusCompiling).Render(ctx, w); err != nil {
			return err
		}
		// json.Marshal escapes <, > and & so the payload cannot close the
		// script element.
		if _, err := fmt.Fprintf(w,
			"</section>\n<script type=\"application/json\" id=\"initial-state\">%s</script>\n<script>%s</script>\n</body>\n</html>\n",
			initial, editorScript); err != nil {
			return err
		}
		return nil
	})
}

// TabBar renders one button per buffer with active marked.
func TabBar(active editor.Tab) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<nav class="flex gap-1 p-2 bg-neutral-800" role="tablist">`); err != nil {
			return err
		}
		for _, tab := range editor.Tabs() {
			class := "px-3 py-1 rounded text-sm font-semibold text-neutral-400 hover:text-white"
			selected := "false"
			if tab == active {
				class = "px-3 py-1 rounded text-sm font-semibold bg-neutral-700 text-white"
				selected = "true"
			}
			if _, err := fmt.Fprintf(w,
				`<button type="button" role="tab" class="%s" data-tab="%s" data-language="%s" aria-selected="%s">%s</button>`,
				class, templ.EscapeString(string(tab)), templ.EscapeString(tab.Language()), selected,
				templ.EscapeString(tab.Label())); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</nav>`)
		return err
	})
}

func activeBuffer(state editor.State) string {
	if state.Tab == editor.TabStyleConfig {
		return state.StyleConfig
	}
	return state.Markup
}

// editorScript binds the page to the websocket. Every server message
// carries the full state; messages from an older cycle are ignored. The
// iframe is recreated when the generation changes and only its srcdoc is
// replaced otherwise. Dragging the split handle (or arrow keys on it)
// resizes the panes within the handle's data-min and data-max.
const editorScript = `
(function () {
  "use strict";
  var state = JSON.parse(document.getElementById("initial-state").textContent);
  var editor = document.getElementById("editor");
  var hints = document.getElementById("hints");
  var tabs = document.querySelectorAll("[data-tab]");
  var ws = null;
  var hintTimer = null;

  function frame() {
    return document.querySelector("#preview iframe");
  }

  function setLoading(on) {
    var bar = document.getElementById("loading-bar");
    if (bar) { bar.classList.toggle("hidden", !on); }
    var container = document.getElementById("preview");
    if (container) { container.dataset.status = on ? "compiling" : "idle"; }
  }

  function remount(s) {
    var old = frame();
    var next = document.createElement("iframe");
    next.id = "preview-frame-" + s.generation;
    next.title = "Preview";
    next.className = "w-full h-full border-0";
    next.setAttribute("sandbox", "allow-scripts");
    next.dataset.generation = String(s.generation);
    next.srcdoc = s.output;
    if (old) { old.replaceWith(next); } else { document.getElementById("preview").appendChild(next); }
    document.getElementById("preview").dataset.generation = String(s.generation);
  }

  function showOutput(s) {
    var f = frame();
    if (!f || f.dataset.generation !== String(s.generation)) {
      remount(s);
      return;
    }
    if (f.getAttribute("srcdoc") !== s.output) { f.srcdoc = s.output; }
  }

  function showTabs(tab) {
    tabs.forEach(function (b) {
      var on = b.dataset.tab === tab;
      b.setAttribute("aria-selected", on ? "true" : "false");
      b.classList.toggle("bg-neutral-700", on);
      b.classList.toggle("text-white", on);
      b.classList.toggle("text-neutral-400", !on);
      if (on) { editor.dataset.language = b.dataset.language; }
    });
  }

  function buffer(s, tab) {
    return tab === "config" ? s.styleConfig : s.markup;
  }

  function showBuffers(s, force) {
    showTabs(s.tab);
    var value = buffer(s, s.tab);
    if (editor.value !== value && (force || document.activeElement !== editor)) {
      editor.value = value;
    }
  }

  function apply(msg) {
    if (msg.type === "error") {
      console.warn("livepen:", msg.error);
      return;
    }
    var s = msg.state;
    if (!s || s.cycle < state.cycle) { return; }
    var tabChanged = s.tab !== state.tab;
    state = s;
    if (msg.type === "state" || msg.type === "buffers") { showBuffers(s, msg.type === "state" || tabChanged); }
    setLoading(s.status === "compiling");
    showOutput(s);
  }

  function send(obj) {
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify(obj));
      return;
    }
    var path = obj.type === "tab" ? "/api/tab" : "/api/edit";
    var body = obj.type === "tab" ? { tab: obj.tab } : { tab: obj.tab, value: obj.value };
    fetch(path, { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(body) })
      .then(function (r) { return r.json(); })
      .then(function (s) { if (s && s.cycle !== undefined) { apply({ type: "buffers", state: s }); } })
      .catch(function (e) { console.warn("livepen:", e); });
  }

  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(scheme + location.host + "/ws");
    ws.onmessage = function (ev) {
      try { apply(JSON.parse(ev.data)); } catch (e) { console.warn("livepen:", e); }
    };
    ws.onclose = function () { ws = null; setTimeout(connect, 1000); };
  }

  function currentWord() {
    var before = editor.value.slice(0, editor.selectionStart);
    var m = before.match(/[A-Za-z0-9:\-\/\[\].]+$/);
    return m ? m[0] : "";
  }

  function insertHint(hint) {
    var word = currentWord();
    var pos = editor.selectionStart;
    editor.value = editor.value.slice(0, pos - word.length) + hint + editor.value.slice(pos);
    editor.selectionStart = editor.selectionEnd = pos - word.length + hint.length;
    hints.classList.add("hidden");
    editor.focus();
    send({ type: "edit", tab: state.tab, value: editor.value });
  }

  function showHints(list) {
    hints.innerHTML = "";
    list.forEach(function (h) {
      var li = document.createElement("li");
      li.textContent = h;
      li.className = "px-3 py-1 cursor-pointer hover:bg-neutral-700";
      li.setAttribute("role", "option");
      li.addEventListener("mousedown", function (e) { e.preventDefault(); insertHint(h); });
      hints.appendChild(li);
    });
    hints.classList.toggle("hidden", list.length === 0);
  }

  function updateHints() {
    clearTimeout(hintTimer);
    var word = state.tab === "markup" ? currentWord() : "";
    if (word.length < 2) { hints.classList.add("hidden"); return; }
    hintTimer = setTimeout(function () {
      fetch("/api/hints?limit=20&prefix=" + encodeURIComponent(word))
        .then(function (r) { return r.json(); })
        .then(function (body) { showHints(body.hints || []); })
        .catch(function () { hints.classList.add("hidden"); });
    }, 120);
  }

  editor.addEventListener("input", function () {
    if (state.tab === "config") { state.styleConfig = editor.value; } else { state.markup = editor.value; }
    send({ type: "edit", tab: state.tab, value: editor.value });
    updateHints();
  });
  editor.addEventListener("blur", function () { hints.classList.add("hidden"); });

  tabs.forEach(function (b) {
    b.addEventListener("click", function () {
      if (b.dataset.tab === state.tab) { return; }
      state.tab = b.dataset.tab;
      showTabs(state.tab);
      editor.value = buffer(state, state.tab);
      hints.classList.add("hidden");
      send({ type: "tab", tab: state.tab });
    });
  });

  var handle = document.getElementById("split-handle");
  var editorPane = document.getElementById("editor-pane");
  var previewPane = document.getElementById("preview-pane");

  function setSplit(pct) {
    pct = Math.min(Number(handle.dataset.max), Math.max(Number(handle.dataset.min), pct));
    editorPane.style.width = pct + "%";
    previewPane.style.width = (100 - pct) + "%";
    handle.setAttribute("aria-valuenow", String(Math.round(pct)));
  }

  function endDrag(e) {
    if (handle.hasPointerCapture(e.pointerId)) { handle.releasePointerCapture(e.pointerId); }
    previewPane.style.pointerEvents = "";
  }

  handle.addEventListener("pointerdown", function (e) {
    e.preventDefault();
    handle.setPointerCapture(e.pointerId);
    // The iframe would otherwise swallow moves that cross it.
    previewPane.style.pointerEvents = "none";
  });
  handle.addEventListener("pointermove", function (e) {
    if (!handle.hasPointerCapture(e.pointerId)) { return; }
    setSplit(e.clientX / document.body.clientWidth * 100);
  });
  handle.addEventListener("pointerup", endDrag);
  handle.addEventListener("pointercancel", endDrag);
  handle.addEventListener("keydown", function (e) {
    var now = Number(handle.getAttribute("aria-valuenow"));
    if (e.key === "ArrowLeft") { setSplit(now - 5); e.preventDefault(); }
    if (e.key === "ArrowRight") { setSplit(now + 5); e.preventDefault(); }
  });

  connect();
})();
`
