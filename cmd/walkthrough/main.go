// Command walkthrough serves, renders and checks interactive tutorials.
package main

func main() {
	Execute()
}
