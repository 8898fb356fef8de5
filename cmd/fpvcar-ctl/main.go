// fpvcar-ctl sends motion commands to a running fpvcard and watches its
// status stream.
package main

func main() {
	Execute()
}
