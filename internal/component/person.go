package component

// Person is the reference component: a named entity with an age.
// Pure data; systems do the mutating.
type Person struct {
	Name string `yaml:"name" lua:"name"`
	Age  int    `yaml:"age" lua:"age"`
}

// Retired marks a person the aging system no longer touches.
type Retired struct{}
