package gp2c

import (
	"fmt"
	"strings"
)

type printer struct {
	b          *strings.Builder
	backend    Backend
	concise    bool
	outputFile string
}

func writeLine(b *strings.Builder, indent int, s string) {
	for i := 0; i < indent; i++ {
		b.WriteString("    ")
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

// Print renders block as C statements, starting at indentation level zero.
func Print(block Block, backend Backend) string {
	var b strings.Builder
	p := printer{b: &b, backend: backend, outputFile: defaultOutputFile}
	p.block(block, 0)
	return b.String()
}

func (p *printer) block(block Block, indent int) {
	for _, s := range block {
		p.stmt(s, indent)
	}
}

func (p *printer) braced(block Block, indent int) {
	writeLine(p.b, indent, "{")
	p.block(block, indent+1)
	writeLine(p.b, indent, "}")
}

func (p *printer) stmt(s Stmt, indent int) {
	switch s := s.(type) {
	case *Comment:
		if !p.concise {
			writeLine(p.b, indent, "/* "+s.Text+" */")
		}
	case *SetSuccess:
		writeLine(p.b, indent, fmt.Sprintf("success = %t;", s.Value))
	case *IfMatch:
		writeLine(p.b, indent, fmt.Sprintf("if(match%s(M_%s))", s.Rule.Name, s.Rule.Name))
		p.braced(s.Then, indent)
		if s.Else != nil {
			writeLine(p.b, indent, "else")
			p.braced(s.Else, indent)
		}
	case *IfSuccess:
		writeLine(p.b, indent, "if(success)")
		p.braced(s.Then, indent)
		writeLine(p.b, indent, "else")
		p.braced(s.Else, indent)
	case *Choose:
		writeLine(p.b, indent, "if((rand() % 2) == 0)")
		p.braced(s.Left, indent)
		writeLine(p.b, indent, "else")
		p.braced(s.Right, indent)
	case *Region:
		writeLine(p.b, indent, "do")
		writeLine(p.b, indent, "{")
		p.block(s.Body, indent+1)
		writeLine(p.b, indent, "} while(false);")
	case *Loop:
		writeLine(p.b, indent, "while(success)")
		p.braced(s.Body, indent)
	case *Exit:
		if s.IfFailed {
			writeLine(p.b, indent, "if(!success) break;")
		} else {
			writeLine(p.b, indent, "break;")
		}
	case *Apply:
		if s.Rule.EmptyLHS {
			writeLine(p.b, indent, fmt.Sprintf("apply%s(%t);", s.Rule.Name, s.Record))
		} else {
			writeLine(p.b, indent, fmt.Sprintf("apply%s(M_%s, %t);", s.Rule.Name, s.Rule.Name, s.Record))
		}
	case *ResetMorphism:
		writeLine(p.b, indent, fmt.Sprintf("initialiseMorphism(M_%s, host);", s.Rule.Name))
	case *Halt:
		if s.Rule == "" {
			writeLine(p.b, indent, `fprintf(output_file, "No output graph: Fail statement invoked.\n");`)
		} else {
			writeLine(p.b, indent, fmt.Sprintf(`fprintf(output_file, "No output graph: rule %s not applicable.\n");`, s.Rule))
		}
		writeLine(p.b, indent, fmt.Sprintf(`printf("Output information saved to file %s\n");`, p.outputFile))
		writeLine(p.b, indent, "garbageCollect();")
		writeLine(p.b, indent, "fclose(output_file);")
		writeLine(p.b, indent, "return 0;")
	case *Checkpoint:
		line := p.checkpoint(s)
		if s.IfSuccess {
			line = "if(success) " + line
		}
		writeLine(p.b, indent, line)
	default:
		panic(fmt.Sprintf("gp2c: unknown statement %T", s))
	}
}

func (p *printer) checkpoint(c *Checkpoint) string {
	switch c.Op {
	case OpCreate:
		return p.backend.Create(c.ID)
	case OpRollback:
		return p.backend.Rollback(c.ID)
	case OpCommit:
		return p.backend.Commit(c.ID)
	default:
		return p.backend.Update(c.ID)
	}
}
