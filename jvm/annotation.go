package jvm

// Annotation is an annotation instance attached to a class or member.
type Annotation struct {
	Type   TypeRef
	Values []AnnotationValue
}

// AnnotationValue is one named element of an annotation. At most one of the
// reference fields is set; plain (non-reference) values carry none and are
// opaque to the shrinker.
type AnnotationValue struct {
	Name string

	Type   *TypeRef
	Field  *FieldRef
	Method *MethodRef

	// Nested holds annotation-typed element values.
	Nested []Annotation
}

// RewriteAnnotations rewrites every reference embedded in the given
// annotations through rw, returning the same slice mutated in place.
func RewriteAnnotations(annos []Annotation, rw RefRewriter) []Annotation {
	for i := range annos {
		anno := &annos[i]
		anno.Type = rw.RewriteType(anno.Type)
		for j := range anno.Values {
			val := &anno.Values[j]
			if val.Type != nil {
				t := rw.RewriteType(*val.Type)
				val.Type = &t
			}
			if val.Field != nil {
				f := rw.RewriteField(*val.Field)
				val.Field = &f
			}
			if val.Method != nil {
				m := rw.RewriteMethod(*val.Method)
				val.Method = &m
			}
			val.Nested = RewriteAnnotations(val.Nested, rw)
		}
	}
	return annos
}
