package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// query_guard scans sqlc query files. Every statement needs a "-- name:"
// annotation, and SELECT/UPDATE/DELETE statements need a WHERE clause.
// Exit code 0 = ok, 1 = violation, 2 = other error.
func main() {
	root := "internal/db/queries"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	deny, err := scan(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query_guard error: %v\n", err)
		os.Exit(2)
	}
	if len(deny) > 0 {
		for _, v := range deny {
			fmt.Fprintf(os.Stderr, "VIOLATION: %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("query_guard: OK")
}

var (
	reName      = regexp.MustCompile(`^--\s*name:\s*(\w+)`)
	reStatement = regexp.MustCompile(`(?i)^\s*(select|insert|update|delete)\b`)
	reNeedWhere = regexp.MustCompile(`(?i)^\s*(select|update|delete)\b`)
	reWhere     = regexp.MustCompile(`(?i)\bwhere\b`)
)

func scan(dir string) ([]string, error) {
	var violations []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		found, err := checkFile(path)
		if err != nil {
			return err
		}
		violations = append(violations, found...)
		return nil
	})
	return violations, err
}

type query struct {
	name      string
	line      int
	body      strings.Builder
	needWhere bool
}

func checkFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		violations []string
		current    *query
		lineNo     int
	)
	flush := func() {
		if current == nil {
			return
		}
		if current.needWhere && !reWhere.MatchString(current.body.String()) {
			violations = append(violations, fmt.Sprintf("%s:%d %s has no WHERE clause", path, current.line, current.name))
		}
		current = nil
	}

	s := bufio.NewScanner(f)
	for s.Scan() {
		lineNo++
		line := s.Text()
		if m := reName.FindStringSubmatch(line); m != nil {
			flush()
			current = &query{name: m[1], line: lineNo}
			continue
		}
		if reStatement.MatchString(line) {
			if current == nil {
				violations = append(violations, fmt.Sprintf("%s:%d statement without -- name annotation", path, lineNo))
				current = &query{name: "(unnamed)", line: lineNo}
			}
			if current.body.Len() == 0 && reNeedWhere.MatchString(line) {
				current.needWhere = true
			}
		}
		if current != nil {
			current.body.WriteString(line)
			current.body.WriteByte('\n')
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	flush()
	return violations, nil
}
