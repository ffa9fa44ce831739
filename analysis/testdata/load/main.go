package main

import "fmt"

func main() {
	fmt.Println("tcp") //capscan:ignore
}
