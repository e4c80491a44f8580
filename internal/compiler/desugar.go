package compiler

// desugar rewrites the extended regex algebra into the foundational
// algebra {set, cat, alt, rep, isec, diff}. The input tree is not
// mutated; annotations on a source node survive on its rewritten root.
func desugar(re *Regex) *Regex {
	var out *Regex
	switch re.tag {
	case TagByte, TagRange, TagSet:
		out = ByteSetOf(re.set)
	case TagChar, TagStr, TagBytes:
		args := make([]*Regex, len(re.lit))
		for i, b := range re.lit {
			args[i] = ByteSetOf(NewByteSet(b))
		}
		out = Cat(args...)
	case TagClass:
		out = ByteSetOf(classUnion(re.classes))
	case TagCClass:
		out = ByteSetOf(classUnion(re.classes).Complement())
	case TagCat:
		args := make([]*Regex, len(re.args))
		for i, a := range re.args {
			args[i] = desugar(a)
		}
		out = Cat(args...)
	case TagAlt:
		out = Alt(desugar(re.args[0]), desugar(re.args[1]))
	case TagRep:
		out = Rep(desugar(re.args[0]))
	case TagRep1:
		// rep1(x) -> cat(x, rep(x))
		x := desugar(re.args[0])
		out = Cat(x, Rep(x))
	case TagOpt:
		// opt(x) -> alt(x, epsilon)
		out = Alt(desugar(re.args[0]), Cat())
	case TagNeg:
		// neg(x) -> diff(rep(any), x)
		out = Diff(Rep(desugar(Any())), desugar(re.args[0]))
	case TagIsec:
		out = Isec(desugar(re.args[0]), desugar(re.args[1]))
	case TagDiff:
		out = Diff(desugar(re.args[0]), desugar(re.args[1]))
	default:
		out = Epsilon()
	}
	return re.cloneAnnotationsOnto(out)
}

func classUnion(sets []ByteSet) ByteSet {
	var u ByteSet
	for _, s := range sets {
		u = u.Union(s)
	}
	return u
}
