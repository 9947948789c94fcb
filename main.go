package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"
	"go.mozilla.org/pkcs7"

	"duke/vm"
)

var (
	mainClass     string
	debugMode     bool
	signaturePath string
)

// mapFile memory-maps path read-only rather than copying it into a Go
// []byte. A firmware chainloader reads boot images that may be large;
// neither vm.ParseClass nor vm.OpenZip mutates the buffer they're handed,
// so a read-only mapping is safe to parse directly out of.
func mapFile(path string) (mmap.MMap, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return m, f, nil
}

// verifySignature checks payload against a detached PKCS#7 signature read
// from sigPath, refusing to chainload an unverified image rather than
// silently trusting it.
func verifySignature(payload []byte, sigPath string) error {
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("reading signature %s: %w", sigPath, err)
	}
	p7, err := pkcs7.Parse(sigData)
	if err != nil {
		return fmt.Errorf("parsing signature: %w", err)
	}
	p7.Content = payload
	if err := p7.Verify(); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

func loadClasses(path string) (*vm.VM, []string, error) {
	data, f, err := mapFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	defer data.Unmap()
	defer f.Close()

	if signaturePath != "" {
		if verr := verifySignature(data, signaturePath); verr != nil {
			return nil, nil, verr
		}
	}

	m := vm.NewVM(vm.NewConsoleBridge())

	if strings.HasSuffix(path, ".jar") || strings.HasSuffix(path, ".zip") {
		archive, zerr := vm.OpenZip(data)
		if zerr != nil {
			return nil, nil, fmt.Errorf("opening archive: %w", zerr)
		}
		var names []string
		for _, entry := range archive.ClassEntries() {
			classBytes, rerr := archive.ReadEntry(entry)
			if rerr != nil {
				return nil, nil, fmt.Errorf("reading %s: %w", entry.Name, rerr)
			}
			name, lerr := m.LoadClass(classBytes)
			if lerr != nil {
				return nil, nil, fmt.Errorf("loading %s: %w", entry.Name, lerr)
			}
			names = append(names, name)
		}
		return m, names, nil
	}

	name, lerr := m.LoadClass(data)
	if lerr != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", path, lerr)
	}
	return m, []string{name}, nil
}

func runFile(cmd *cobra.Command, args []string) {
	path := args[0]

	m, names, err := loadClasses(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	entry := mainClass
	if entry == "" {
		if len(names) == 0 {
			fmt.Fprintln(os.Stderr, "no classes loaded")
			os.Exit(1)
		}
		entry = names[0]
		if len(names) > 1 {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			for _, n := range names {
				if n == base {
					entry = n
					break
				}
			}
		}
	}

	var result vm.Value
	var runErr *vm.Error
	if debugMode {
		result, runErr = m.RunDebug(entry, "main", "([Ljava/lang/String;)V", nil)
	} else {
		result, runErr = m.Run(entry, "main", "([Ljava/lang/String;)V", nil)
	}

	if runErr != nil {
		if runErr.Kind == vm.ErrSystemExit {
			os.Exit(int(runErr.Code))
		}
		fmt.Fprintln(os.Stderr, runErr.Error())
		os.Exit(1)
	}
	_ = result
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "duke",
		Short: "A minimal class-file interpreter",
		Long:  "duke loads a compiled .class file or .jar archive and interprets its bytecode directly, with no JIT and no garbage-collected heap of its own.",
		Args:  cobra.ExactArgs(1),
		Run:   runFile,
	}

	rootCmd.Flags().StringVarP(&mainClass, "main-class", "m", "", "fully-qualified name of the class to run (defaults to the file's own class, or the archive entry matching its filename)")
	rootCmd.Flags().BoolVarP(&debugMode, "debug", "d", false, "single-step through execution from an interactive console")
	rootCmd.Flags().StringVar(&signaturePath, "verify-signature", "", "path to a detached PKCS#7 signature; refuse to load the image if it doesn't verify")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("duke 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
