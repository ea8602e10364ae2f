// Package prompt abstracts the interactive decisions the execution engine
// needs from the user, so the engine stays testable without a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/library"
	"github.com/grabtree/grabtree/internal/models"
)

// Prompter makes the interactive decisions at node boundaries. Every method
// may return a user-cancelled error, which terminates the whole request.
type Prompter interface {
	// SelectItem picks one of several candidate items for a request.
	SelectItem(items []*models.OperationItem) (*models.OperationItem, error)

	// ConfirmDuplicateDownload asks whether to download anyway after an
	// existing library copy was found.
	ConfirmDuplicateDownload(description string, result *library.DuplicateCheckResult) (bool, error)

	// OfferLibraryFiling asks whether to move a finished download into a
	// library folder. It returns the chosen library and folder, or
	// accepted=false when the user keeps the file where it is.
	OfferLibraryFiling(path string, folders map[string][]string) (libraryName, folder string, accepted bool, err error)
}

// Console is the terminal-backed Prompter.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a console prompter reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// SelectItem implements Prompter. A single candidate is picked without
// asking; zero cancels the request.
func (c *Console) SelectItem(items []*models.OperationItem) (*models.OperationItem, error) {
	if len(items) == 1 {
		fmt.Fprintf(c.out, "Found 1 option: %s\n", items[0].Description())
		return items[0], nil
	}

	fmt.Fprintf(c.out, "Found %d options:\n", len(items))
	for i, item := range items {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, item.Description())
	}

	for {
		fmt.Fprintf(c.out, "Select an option (1-%d, 0 to cancel): ", len(items))
		choice, err := c.readInt()
		if err != nil {
			fmt.Fprintln(c.out, "Please enter a number")
			continue
		}
		if choice == 0 {
			return nil, apperrors.NewUserCancelledError("item selection")
		}
		if choice >= 1 && choice <= len(items) {
			fmt.Fprintf(c.out, "Selected: %s\n", items[choice-1].Description())
			return items[choice-1], nil
		}
		fmt.Fprintf(c.out, "Please enter a number between 1 and %d\n", len(items))
	}
}

// ConfirmDuplicateDownload implements Prompter. The existing copy's quality
// summary is shown so the user can judge whether a re-download is worth it.
func (c *Console) ConfirmDuplicateDownload(description string, result *library.DuplicateCheckResult) (bool, error) {
	fmt.Fprintf(c.out, "\nAn existing copy was found in the library: %s\n", result.Item.Name)
	if q := result.Quality; q != nil {
		fmt.Fprintln(c.out, "Existing copy:")
		fmt.Fprintf(c.out, "  Path:       %s\n", q.Path)
		fmt.Fprintf(c.out, "  Size:       %s\n", q.Size)
		fmt.Fprintf(c.out, "  Resolution: %s\n", q.Resolution)
		fmt.Fprintf(c.out, "  Bitrate:    %s\n", q.Bitrate)
		fmt.Fprintf(c.out, "  Codec:      %s\n", q.Codec)
		fmt.Fprintf(c.out, "  Runtime:    %s\n", q.Runtime)
		fmt.Fprintf(c.out, "  Added:      %s\n", q.AddedDate)
	}
	return c.confirm(fmt.Sprintf("Download %s anyway?", description))
}

// OfferLibraryFiling implements Prompter.
func (c *Console) OfferLibraryFiling(path string, folders map[string][]string) (string, string, bool, error) {
	type entry struct {
		library string
		folder  string
	}
	libs := make([]string, 0, len(folders))
	for lib := range folders {
		libs = append(libs, lib)
	}
	sort.Strings(libs)

	var entries []entry
	for _, lib := range libs {
		for _, p := range folders[lib] {
			entries = append(entries, entry{library: lib, folder: p})
		}
	}
	if len(entries) == 0 {
		return "", "", false, nil
	}

	file, err := c.confirm(fmt.Sprintf("Move %s into a library folder?", path))
	if err != nil || !file {
		return "", "", false, err
	}

	fmt.Fprintln(c.out, "Library folders:")
	for i, e := range entries {
		fmt.Fprintf(c.out, "  %d. %s (%s)\n", i+1, e.folder, e.library)
	}

	for {
		fmt.Fprintf(c.out, "Select a folder (1-%d, 0 to cancel): ", len(entries))
		choice, err := c.readInt()
		if err != nil {
			fmt.Fprintln(c.out, "Please enter a number")
			continue
		}
		if choice == 0 {
			return "", "", false, apperrors.NewUserCancelledError("library folder selection")
		}
		if choice >= 1 && choice <= len(entries) {
			chosen := entries[choice-1]
			return chosen.library, chosen.folder, true, nil
		}
		fmt.Fprintf(c.out, "Please enter a number between 1 and %d\n", len(entries))
	}
}

func (c *Console) confirm(question string) (bool, error) {
	for {
		fmt.Fprintf(c.out, "%s [y/n/q]: ", question)
		line, err := c.in.ReadString('\n')
		if err != nil {
			return false, apperrors.NewUserCancelledError("input closed")
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "q", "quit":
			return false, apperrors.NewUserCancelledError(question)
		}
		fmt.Fprintln(c.out, "Please answer y, n or q")
	}
}

func (c *Console) readInt() (int, error) {
	line, err := c.in.ReadString('\n')
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(line))
}
