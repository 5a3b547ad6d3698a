package skillstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

// SkillInfo describes one skill directory in the canonical store. Skills
// without a SKILL.md manifest still list, with empty metadata.
type SkillInfo struct {
	Name        string
	Description string
	Directory   string
}

// ListSkills enumerates the skill directories under dir, reading SKILL.md
// frontmatter where present. Results are sorted by name.
func ListSkills(dir string) ([]SkillInfo, error) {
	names, err := listSubdirs(dir)
	if err != nil {
		return nil, err
	}

	infos := make([]SkillInfo, 0, len(names))
	for _, name := range names {
		info := SkillInfo{
			Name:      name,
			Directory: filepath.Join(dir, name),
		}
		if description, err := readSkillDescription(filepath.Join(info.Directory, skillFileName)); err == nil {
			info.Description = description
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// readSkillDescription parses the YAML frontmatter of a SKILL.md file and
// returns its description field.
func readSkillDescription(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return "", errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return "", errors.New("missing frontmatter")
	}

	description, _ := metaData["description"].(string)
	return description, nil
}

// RenderSkillList writes a tabular listing of skills.
func RenderSkillList(w io.Writer, skills []SkillInfo) error {
	if len(skills) == 0 {
		fmt.Fprintln(w, "No skills found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tPATH")
	for _, skill := range skills {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", skill.Name, skill.Description, skill.Directory)
	}
	return tw.Flush()
}
