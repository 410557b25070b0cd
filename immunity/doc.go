// Package immunity tracks acquired immunity per agent per source, where a
// source is either natural infection with a specific genotype or a vaccine
// product. Each source carries decay kinetics applied every step, and a
// cross-immunity matrix scales how much one source's level protects against
// each genotype. The resulting modifiers feed the transmission engine
// (reduced susceptibility) and the progression model (reduced severity
// growth).
package immunity
