package platform

func getWindowsIgnores() []string {
	return []string{
		"./**/*.pdb",
		"./**/*.lib",
		"./**/*.exp",
		"./**/*.ilk",
		"./**/Thumbs.db",
		"./**/desktop.ini",
	}
}
