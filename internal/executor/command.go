package executor

import "strings"

// Command is one invocation of the backing tool.
type Command struct {
	// Name is a stable label for logs and metrics.
	Name string
	Args []string
}

func (c Command) String() string {
	return "git " + strings.Join(c.Args, " ")
}

// Backing command vocabulary.

// ListLocks lists every lock held in a repository as a JSON array.
func ListLocks() Command {
	return Command{Name: "lfs-locks", Args: []string{"lfs", "locks", "--json"}}
}

// AcquireLock locks a path given relative to the repository root.
func AcquireLock(rel string) Command {
	return Command{Name: "lfs-lock", Args: []string{"lfs", "lock", rel}}
}

// ReleaseLock unlocks a path given relative to the repository root.
func ReleaseLock(rel string, force bool) Command {
	args := []string{"lfs", "unlock", rel}
	if force {
		args = append(args, "--force")
	}
	return Command{Name: "lfs-unlock", Args: args}
}

// ListSubmodules prints one "submodule.<name>.path <path>" line per submodule.
func ListSubmodules() Command {
	return Command{Name: "list-submodules", Args: []string{"config", "--file", ".gitmodules", "--get-regexp", "path"}}
}
