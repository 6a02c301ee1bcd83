package gp2c

import (
	"fmt"
	"strings"

	"gp2c/pkg/program"
)

// runtimeGenerator writes the runtime main.c in the same order every time:
// outputHeader -> declareMorphisms -> outputSupport -> outputMain.
type runtimeGenerator struct {
	opts    Options
	backend Backend
	prog    *program.Program
	body    Block
	slots   int
	b       strings.Builder
}

func newRuntimeGenerator(opts Options, backend Backend, prog *program.Program, body Block, slots int) *runtimeGenerator {
	return &runtimeGenerator{opts: opts, backend: backend, prog: prog, body: body, slots: slots}
}

func (g *runtimeGenerator) outputHeader() {
	g.b.WriteString("#include <time.h>\n")
	for _, h := range []string{"common.h", "debug.h", "graph.h", "graphStacks.h", "parser.h", "morphism.h"} {
		g.b.WriteString(fmt.Sprintf("#include %q\n", h))
	}
	g.b.WriteString("\n")
}

// Rules with an empty left-hand side never match, so they carry no morphism.
func (g *runtimeGenerator) matchedRules() []*program.Rule {
	out := make([]*program.Rule, 0, len(g.prog.Rules))
	for _, r := range g.prog.Rules {
		if !r.EmptyLHS {
			out = append(out, r)
		}
	}
	return out
}

func (g *runtimeGenerator) declareMorphisms() {
	for _, r := range g.prog.Rules {
		g.b.WriteString(fmt.Sprintf("#include %q\n", r.Name+".h"))
		if !r.EmptyLHS {
			g.b.WriteString(fmt.Sprintf("Morphism *M_%s = NULL;\n", r.Name))
		}
	}
	g.b.WriteString("\n")

	g.b.WriteString("static void freeMorphisms(void)\n{\n")
	for _, r := range g.matchedRules() {
		writeLine(&g.b, 1, fmt.Sprintf("freeMorphism(M_%s);", r.Name))
	}
	g.b.WriteString("}\n\n")
}

func (g *runtimeGenerator) outputSupport() {
	g.b.WriteString("Graph *host = NULL;\n")
	g.b.WriteString("int *node_map = NULL;\n\n")
	g.b.WriteString(g.backend.Helpers(g.slots))

	g.b.WriteString("static void garbageCollect(void)\n{\n")
	writeLine(&g.b, 1, "freeGraph(host);")
	writeLine(&g.b, 1, "freeMorphisms();")
	writeLine(&g.b, 1, g.backend.Free())
	writeLine(&g.b, 1, "closeLogFile();")
	g.b.WriteString("}\n\n")

	g.b.WriteString("static Graph *buildHostGraph(char *host_file)\n{\n")
	writeLine(&g.b, 1, `yyin = fopen(host_file, "r");`)
	writeLine(&g.b, 1, "if(yyin == NULL)")
	writeLine(&g.b, 1, "{")
	writeLine(&g.b, 2, "perror(host_file);")
	writeLine(&g.b, 2, "return NULL;")
	writeLine(&g.b, 1, "}")
	g.b.WriteString("\n")
	writeLine(&g.b, 1, fmt.Sprintf("host = newGraph(%d, %d);", g.opts.HostNodeSize, g.opts.HostEdgeSize))
	writeLine(&g.b, 1, fmt.Sprintf("node_map = calloc(%d, sizeof(int));", g.opts.HostNodeSize))
	writeLine(&g.b, 1, "if(node_map == NULL)")
	writeLine(&g.b, 1, "{")
	writeLine(&g.b, 2, "freeGraph(host);")
	writeLine(&g.b, 2, "return NULL;")
	writeLine(&g.b, 1, "}")
	writeLine(&g.b, 1, "int result = yyparse();")
	writeLine(&g.b, 1, "free(node_map);")
	writeLine(&g.b, 1, "fclose(yyin);")
	writeLine(&g.b, 1, "if(result == 0) return host;")
	writeLine(&g.b, 1, "freeGraph(host);")
	writeLine(&g.b, 1, "return NULL;")
	g.b.WriteString("}\n\n")

	g.b.WriteString("bool success = true;\n\n")
}

func (g *runtimeGenerator) outputMain() {
	g.b.WriteString("int main(int argc, char **argv)\n{\n")
	writeLine(&g.b, 1, "srand(time(NULL));")
	writeLine(&g.b, 1, fmt.Sprintf("openLogFile(%q);", g.opts.LogFile))
	g.b.WriteString("\n")
	writeLine(&g.b, 1, "if(argc != 2)")
	writeLine(&g.b, 1, "{")
	writeLine(&g.b, 2, `fprintf(stderr, "Error: missing <host-file> argument.\n");`)
	writeLine(&g.b, 2, "return 0;")
	writeLine(&g.b, 1, "}")
	g.b.WriteString("\n")
	writeLine(&g.b, 1, "host = buildHostGraph(argv[1]);")
	writeLine(&g.b, 1, "if(host == NULL)")
	writeLine(&g.b, 1, "{")
	writeLine(&g.b, 2, `fprintf(stderr, "Error parsing host graph file.\n");`)
	writeLine(&g.b, 2, "return 0;")
	writeLine(&g.b, 1, "}")
	writeLine(&g.b, 1, fmt.Sprintf("FILE *output_file = fopen(%q, \"w\");", g.opts.OutputFile))
	writeLine(&g.b, 1, "if(output_file == NULL)")
	writeLine(&g.b, 1, "{")
	writeLine(&g.b, 2, fmt.Sprintf("perror(%q);", g.opts.OutputFile))
	writeLine(&g.b, 2, "exit(1);")
	writeLine(&g.b, 1, "}")
	g.b.WriteString("\n")

	for _, r := range g.matchedRules() {
		writeLine(&g.b, 1, fmt.Sprintf("M_%s = makeMorphism(%d, %d, %d);", r.Name, r.LeftNodes, r.LeftEdges, r.Variables))
	}
	g.b.WriteString("\n")

	p := printer{b: &g.b, backend: g.backend, concise: g.opts.Concise, outputFile: g.opts.OutputFile}
	p.block(g.body, 1)

	writeLine(&g.b, 1, "printGraph(host, output_file);")
	writeLine(&g.b, 1, fmt.Sprintf(`printf("Output graph saved to file %s\n");`, g.opts.OutputFile))
	writeLine(&g.b, 1, "garbageCollect();")
	writeLine(&g.b, 1, "fclose(output_file);")
	writeLine(&g.b, 1, "return 0;")
	g.b.WriteString("}\n")
}

func (g *runtimeGenerator) generate() string {
	g.outputHeader()
	g.declareMorphisms()
	g.outputSupport()
	g.outputMain()
	return g.b.String()
}
