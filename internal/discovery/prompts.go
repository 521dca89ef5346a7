package discovery

import (
	"fmt"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// systemPrompt instructs the model on the discovery reply format.
const systemPrompt = `You are a security engineer mapping the API surface of an application.
You explore the codebase one file at a time and trace a single endpoint (or the CRUD group of one entity) from its entry point to its response.

Reply with exactly one JSON object and nothing else. Allowed shapes:
{"status":"pick_endpoint","reasoning":"...","file_to_read_next":"<path of an entry point file>"}
{"status":"tracing_endpoint","reasoning":"...","file_to_read_next":"<path>","read_later":["<path>", "..."]}
{"status":"completed","result":{"flow_name":"<METHOD /path or Entity CRUD>","purpose":"...","entry_point":"<path>","input_types":["..."],"output_types":["..."],"sensitivity_level":"low|medium|high|critical","mark_down":"<markdown documenting the traced flow with the relevant code>"}}
{"status":"not_found","reasoning":"<why no unclaimed endpoint remains>"}

Rules:
- Only request paths that appear in the directory tree.
- Never trace an entry point that is listed as already claimed.
- flow_name must be unique and stable.
- Reply not_found when every endpoint has been documented.`

const concludeWarning = `WARNING: this is your last turn for this endpoint. Do not request more files.
Reply now with status "completed" and the full result for what you have traced so far.

`

func initialPrompt(tree string, claimed []models.EndpointProfile) string {
	var b strings.Builder
	b.WriteString("Directory tree of the codebase:\n```\n")
	b.WriteString(tree)
	b.WriteString("\n```\n\n")
	if len(claimed) == 0 {
		b.WriteString("No endpoints have been documented yet.\n")
	} else {
		b.WriteString("Endpoints already documented (do not trace these again):\n")
		for _, e := range claimed {
			fmt.Fprintf(&b, "- %s (entry point: %s)\n", e.FlowName, e.EntryPoint)
		}
	}
	b.WriteString("\nPick the entry point file of the next undocumented endpoint, or reply not_found.")
	return b.String()
}

func fileBlock(f models.FileEntry) string {
	return fmt.Sprintf("File: %s\n```\n%s\n```\n", f.Path, f.Content)
}

func entryPointPrompt(f models.FileEntry) string {
	return fileBlock(f) + "\nStart tracing one endpoint from this file. Request the next file you need with tracing_endpoint, or reply completed when the flow is fully documented."
}

func tracePrompt(f models.FileEntry) string {
	return fileBlock(f) + "\nContinue tracing. Request the next file with tracing_endpoint, or reply completed when the flow is fully documented."
}

func cachedPrompt(f models.FileEntry) string {
	return "Reminder: you already read " + f.Path + " during this trace. Its content is repeated below; prefer files you have not read yet.\n\n" +
		fileBlock(f) + "\nContinue tracing or reply completed."
}

func fallbackPrompt(requested string, f models.FileEntry) string {
	return fmt.Sprintf("The file %q does not exist. Serving %s from your read_later list instead.\n\n", requested, f.Path) +
		tracePrompt(f)
}

func candidatesPrompt(requested string, candidates []string, tracing bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The file %q does not exist in this codebase.\n", requested)
	if len(candidates) == 0 {
		b.WriteString("No similarly named files were found.\n")
	} else {
		b.WriteString("Similar files:\n")
		for _, c := range candidates {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if tracing {
		b.WriteString("\nRequest one of these files, or reply completed with what you have traced so far.")
	} else {
		b.WriteString("\nPick one of these files, or reply not_found if no undocumented endpoint remains.")
	}
	return b.String()
}
