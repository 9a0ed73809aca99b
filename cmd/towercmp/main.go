// towercmp compares the configuration resources of two automation-platform
// instances (Tower and AWX) and reports where they differ.
package main

func main() {
	Execute()
}
