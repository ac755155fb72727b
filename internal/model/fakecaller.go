package model

// essentialClassNames are instantiated by the runtime itself, e.g. when a
// static initializer fails or an array index is out of bounds.
var essentialClassNames = []string{
	"java/lang/Object",
	"java/lang/ExceptionInInitializerError",
	"java/lang/ArithmeticException",
	"java/lang/ClassCastException",
	"java/lang/ClassNotFoundException",
	"java/lang/IndexOutOfBoundsException",
	"java/lang/NegativeArraySizeException",
}

// objectCallbacks are the java.lang.Object methods the runtime invokes on
// arbitrary instances.
var objectCallbacks = []struct{ name, desc string }{
	{"toString", "()Ljava/lang/String;"},
	{"hashCode", "()I"},
	{"equals", "(Ljava/lang/Object;)Z"},
	{"finalize", "()V"},
	{"clone", "()Ljava/lang/Object;"},
}

func fakeCallerFacts() *ClassFacts {
	var code []Instruction
	for _, cb := range objectCallbacks {
		code = append(code, Instruction{Op: OpInvokeVirtual, Owner: objectClass, Name: cb.name, Desc: cb.desc})
	}
	for _, name := range essentialClassNames {
		code = append(code,
			Instruction{Op: OpNew, Owner: name},
			Instruction{Op: OpInvokeSpecial, Owner: name, Name: initName, Desc: "()V"},
		)
	}
	return &ClassFacts{
		Name:   fakeKlassName,
		Access: AccPublic,
		Methods: []MethodFacts{{
			Name:       "FakeCaller",
			Descriptor: "(L" + fakeKlassName + ";)V",
			Access:     AccStatic | AccPublic,
			Code:       code,
		}},
	}
}

// IsToolEdge reports whether an edge from caller to callee only records
// analysis bookkeeping, i.e. it touches the fake caller.
func (s *Session) IsToolEdge(caller, callee *Method) bool {
	fake := s.FakeCaller()
	return caller == fake || callee == fake
}
